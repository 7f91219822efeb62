package registry

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	kvdb "go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/pebbledb"
)

func testNode(i byte) Node {
	var addr common.Address
	addr[19] = i
	return Node{
		Address: addr,
		URL:     fmt.Sprintf("http://127.0.0.1:90%02d", i),
	}
}

func TestLoadEmpty(t *testing.T) {
	c := qt.New(t)

	database, err := pebbledb.New(kvdb.Options{Path: c.TempDir()})
	c.Assert(err, qt.IsNil)

	reg, err := Load(database, c.TempDir(), 3)
	c.Assert(err, qt.IsNil)

	snap := reg.Snapshot()
	c.Assert(snap.Version, qt.Equals, uint64(0))
	c.Assert(snap.Size(), qt.Equals, 0)
	c.Assert(snap.Threshold, qt.Equals, 3)
}

func TestAddRemoveNode(t *testing.T) {
	c := qt.New(t)

	database, err := pebbledb.New(kvdb.Options{Path: c.TempDir()})
	c.Assert(err, qt.IsNil)
	reg, err := Load(database, c.TempDir(), 2)
	c.Assert(err, qt.IsNil)

	root0 := reg.Snapshot().Root

	for i := byte(1); i <= 3; i++ {
		_, err = reg.AddNode(testNode(i))
		c.Assert(err, qt.IsNil)
	}
	snap := reg.Snapshot()
	c.Assert(snap.Version, qt.Equals, uint64(3))
	c.Assert(snap.Size(), qt.Equals, 3)
	c.Assert(snap.Contains(testNode(1).Address), qt.IsTrue)
	c.Assert(snap.Contains(testNode(9).Address), qt.IsFalse)

	// each mutation produces a new version root
	c.Assert(snap.Root, qt.Not(qt.DeepEquals), root0)

	// adding an already-trusted node
	_, err = reg.AddNode(testNode(1))
	c.Assert(err, qt.Equals, ErrNodeExists)

	// removing an unknown node
	_, err = reg.RemoveNode(testNode(9).Address)
	c.Assert(err, qt.Equals, ErrNodeNotFound)

	_, err = reg.RemoveNode(testNode(2).Address)
	c.Assert(err, qt.IsNil)
	snap = reg.Snapshot()
	c.Assert(snap.Version, qt.Equals, uint64(4))
	c.Assert(snap.Size(), qt.Equals, 2)
	c.Assert(snap.Contains(testNode(2).Address), qt.IsFalse)

	// removing below the threshold is rejected
	_, err = reg.RemoveNode(testNode(1).Address)
	c.Assert(err, qt.Equals, ErrThresholdUnreachable)
}

func TestSetThreshold(t *testing.T) {
	c := qt.New(t)

	database, err := pebbledb.New(kvdb.Options{Path: c.TempDir()})
	c.Assert(err, qt.IsNil)
	reg, err := Load(database, c.TempDir(), 1)
	c.Assert(err, qt.IsNil)

	_, err = reg.AddNode(testNode(1))
	c.Assert(err, qt.IsNil)
	_, err = reg.AddNode(testNode(2))
	c.Assert(err, qt.IsNil)

	// the threshold can not exceed the trusted-node count
	_, err = reg.SetThreshold(3)
	c.Assert(err, qt.Equals, ErrThresholdUnreachable)

	_, err = reg.SetThreshold(0)
	c.Assert(err, qt.Not(qt.IsNil))

	snap, err := reg.SetThreshold(2)
	c.Assert(err, qt.IsNil)
	c.Assert(snap.Threshold, qt.Equals, 2)
}

func TestReload(t *testing.T) {
	c := qt.New(t)

	dir := c.TempDir()
	treesPath := filepath.Join(dir, "trees")
	dbPath := filepath.Join(dir, "registry")

	database, err := pebbledb.New(kvdb.Options{Path: dbPath})
	c.Assert(err, qt.IsNil)
	reg, err := Load(database, treesPath, 1)
	c.Assert(err, qt.IsNil)
	_, err = reg.AddNode(testNode(1))
	c.Assert(err, qt.IsNil)
	_, err = reg.AddNode(testNode(2))
	c.Assert(err, qt.IsNil)
	snap := reg.Snapshot()

	err = database.Close()
	c.Assert(err, qt.IsNil)

	// reloading rebuilds the same version with the same root
	database2, err := pebbledb.New(kvdb.Options{Path: dbPath})
	c.Assert(err, qt.IsNil)
	reg2, err := Load(database2, treesPath, 1)
	c.Assert(err, qt.IsNil)

	snap2 := reg2.Snapshot()
	c.Assert(snap2.Version, qt.Equals, snap.Version)
	c.Assert(snap2.Root, qt.DeepEquals, snap.Root)
	c.Assert(snap2.Nodes, qt.DeepEquals, snap.Nodes)
	c.Assert(snap2.Contains(testNode(1).Address), qt.IsTrue)
}

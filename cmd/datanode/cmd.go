package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/datamint/datanode/api"
	"github.com/datamint/datanode/attestor"
	"github.com/datamint/datanode/db"
	"github.com/datamint/datanode/registry"
	"github.com/datamint/datanode/types"
	"github.com/datamint/datanode/verifier"
	"github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"
	flag "github.com/spf13/pflag"
	kvdb "go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/pebbledb"
	"go.vocdoni.io/dvote/log"
)

// Config contains the main configuration parameters of the node
type Config struct {
	dir, logLevel, port string
	threshold           int
	expiryDays          uint64
	attestTimeout       uint64
	nodes               []string
}

func main() {
	config := Config{}

	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	flag.StringVarP(&config.dir, "dir", "d", filepath.Join(home, ".datanode"),
		"storage data directory")
	flag.StringVarP(&config.logLevel, "logLevel", "l", "info", "log level (info, debug, warn, error)")
	flag.StringVarP(&config.port, "port", "p", "8080", "network port for the HTTP API")
	flag.IntVarP(&config.threshold, "threshold", "t", types.DefaultRequiredSignatures,
		"number of valid node signatures required to verify a creator")
	flag.Uint64Var(&config.expiryDays, "expiry", 30, "verification validity window in days")
	flag.Uint64Var(&config.attestTimeout, "attest-timeout", 10,
		"per-node attestation request timeout in seconds")
	flag.StringSliceVarP(&config.nodes, "nodes", "n", nil,
		"trusted attestor nodes to seed the registry with (addr=url,addr=url,...)")

	flag.CommandLine.SortFlags = false
	flag.Parse()

	log.Init(config.logLevel, "stdout")

	log.Debugf("Config: %#v\n", config)

	if err := os.MkdirAll(config.dir, 0700); err != nil {
		log.Fatal(err)
	}

	// prepare the ledger DB
	sqlDB, err := sql.Open("sqlite3", filepath.Join(config.dir, "datanode.sqlite3"))
	if err != nil {
		log.Fatal(err)
	}
	sqlite := db.NewSQLite(sqlDB)
	if err = sqlite.Migrate(); err != nil {
		log.Fatal(err)
	}

	// prepare the trusted-node registry
	opts := kvdb.Options{Path: filepath.Join(config.dir, "registry")}
	database, err := pebbledb.New(opts)
	if err != nil {
		log.Fatal(err)
	}
	reg, err := registry.Load(database,
		filepath.Join(config.dir, "registry-trees"), config.threshold)
	if err != nil {
		log.Fatal(err)
	}
	for _, s := range config.nodes {
		node, err := parseNodeFlag(s)
		if err != nil {
			log.Fatal(err)
		}
		if _, err = reg.AddNode(node); err == registry.ErrNodeExists {
			continue
		} else if err != nil {
			log.Fatal(err)
		}
	}
	snap := reg.Snapshot()
	log.Infof("registry version %d, %d trusted nodes, threshold %d",
		snap.Version, snap.Size(), snap.Threshold)
	if snap.Threshold > snap.Size() {
		log.Warnf("threshold %d exceeds the %d trusted nodes: no"+
			" verification can be accepted until more nodes are added",
			snap.Threshold, snap.Size())
	}

	client := attestor.NewClient(time.Duration(config.attestTimeout) * time.Second)
	v, err := verifier.New(verifier.Options{
		DB:       sqlite,
		Registry: reg,
		Client:   client,
		Expiry:   time.Duration(config.expiryDays) * 24 * time.Hour,
	})
	if err != nil {
		log.Fatal(err)
	}

	a, err := api.New(v, reg)
	if err != nil {
		log.Fatal(err)
	}
	if err = a.Serve(config.port); err != nil {
		log.Fatal(err)
	}
}

// parseNodeFlag parses one "addr=url" entry of the --nodes flag
func parseNodeFlag(s string) (registry.Node, error) {
	parts := strings.SplitN(s, "=", 2)
	if len(parts) != 2 || !common.IsHexAddress(parts[0]) || parts[1] == "" {
		return registry.Node{}, fmt.Errorf("invalid node entry %q,"+
			" expected addr=url", s)
	}
	return registry.Node{
		Address: common.HexToAddress(parts[0]),
		URL:     parts[1],
	}, nil
}

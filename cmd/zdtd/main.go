package main

import (
	"context"
	"flag"
	"io/ioutil"
	"log"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/onemorebsmith/zdt/src/common"
	"github.com/onemorebsmith/zdt/src/model"
	"github.com/onemorebsmith/zdt/src/postgres"
	"github.com/onemorebsmith/zdt/src/scanner"
	"github.com/onemorebsmith/zdt/src/store"
	"github.com/onemorebsmith/zdt/src/web"
	"github.com/onemorebsmith/zdt/src/zcashapi"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

func main() {
	pwd, _ := os.Getwd()
	fullPath := path.Join(pwd, "config.yaml")
	log.Printf("loading config @ `%s`", fullPath)
	rawCfg, err := ioutil.ReadFile(fullPath)
	if err != nil {
		log.Printf("config file not found: %s", err)
		os.Exit(1)
	}
	cfg := scanner.TrackerConfig{}
	if err := yaml.Unmarshal(rawCfg, &cfg); err != nil {
		log.Printf("failed parsing config file: %s", err)
		os.Exit(1)
	}

	once := false
	flag.StringVar(&cfg.RPCServer, "zcashd", cfg.RPCServer, "address of the zcashd rpc endpoint, default `http://localhost:18232`")
	flag.StringVar(&cfg.ViewingKey, "key", cfg.ViewingKey, "sapling viewing key to track donations for")
	flag.StringVar(&cfg.Network, "network", cfg.Network, "network the key belongs to, `testnet` or `mainnet`")
	flag.IntVar(&cfg.MinConfirmations, "minconf", cfg.MinConfirmations, "confirmations required before a donation counts, default 1")
	flag.IntVar(&cfg.ScanIntervalSecs, "interval", cfg.ScanIntervalSecs, "seconds between scan cycles, default 60")
	flag.StringVar(&cfg.ListenPort, "listen", cfg.ListenPort, "address to serve the donation api, default `:8080`")
	flag.StringVar(&cfg.PromPort, "prom", cfg.PromPort, "address to serve prom stats, default `:2112`")
	flag.StringVar(&cfg.PostgresConfig, "pg", cfg.PostgresConfig, `config string for the postgres connection`)
	flag.StringVar(&cfg.RedisAddress, "redis", cfg.RedisAddress, "address of redis for the summary cache, empty disables caching")
	flag.BoolVar(&once, "once", once, "run a single scan cycle and exit")
	flag.Parse()
	cfg.ApplyDefaults()

	log.Println("----------------------------------")
	log.Printf("initializing zdt")
	log.Printf("\tzcashd:       %s", cfg.RPCServer)
	log.Printf("\tnetwork:      %s", cfg.Network)
	log.Printf("\tmin conf:     %d", cfg.MinConfirmations)
	log.Printf("\tinterval:     %ds", cfg.ScanIntervalSecs)
	log.Printf("\tlisten:       %s", cfg.ListenPort)
	log.Printf("\tprom:         %s", cfg.PromPort)
	log.Printf("\tredis:        %s", cfg.RedisAddress)
	log.Println("----------------------------------")

	logger := common.ConfigureZap(zap.InfoLevel)

	key := model.ViewingKey{Key: cfg.ViewingKey, Network: model.Network(cfg.Network)}
	if !key.Valid() {
		logger.Fatal("viewing key is not valid for the configured network",
			zap.String("network", cfg.Network))
	}

	donations := store.NewDonationStore(cfg.MinConfirmations)

	var snapshot scanner.SnapshotFunc
	if cfg.PostgresConfig != "" {
		postgres.ConfigurePostgres(cfg.PostgresConfig)
		restoreSnapshot(donations, logger)
		snapshot = func(ctx context.Context) error {
			return postgres.PutDonations(ctx, donations.Snapshot())
		}
	}

	api := zcashapi.NewZcashAPI(cfg.CommonConfig, key.Network, logger)
	sc := scanner.NewScanner(api, donations, key, cfg.MinConfirmations, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if once {
		scanner.DoScanOnce(ctx, sc, snapshot, logger)
		return
	}

	if cfg.PromPort != "" {
		web.StartPromServer(logger, cfg.PromPort)
	}

	var cache *redis.Client
	if cfg.RedisAddress != "" {
		cache, err = configureRedis(cfg.RedisAddress)
		if err != nil {
			logger.Fatal(errors.Wrap(err, "failed connecting to redis").Error())
		}
		defer cache.Close()
	}

	server := web.NewServer(donations, cache, time.Duration(cfg.CacheTTLSecs)*time.Second, logger)
	if cfg.HealthCheckPort != "" {
		logger.Info("enabling health check on port " + cfg.HealthCheckPort)
		go http.ListenAndServe(cfg.HealthCheckPort, server.Handler())
	}
	go func() {
		if err := server.ListenAndServe(cfg.ListenPort); err != nil {
			logger.Fatal(errors.Wrap(err, "donation api server stopped").Error())
		}
	}()

	scanner.StartPipeline(ctx, sc, time.Duration(cfg.ScanIntervalSecs)*time.Second, snapshot, logger)
}

func restoreSnapshot(donations *store.DonationStore, logger *zap.Logger) {
	restored, err := postgres.GetDonations(context.Background())
	if err != nil {
		// fall back to an empty store, the next scan rebuilds from the node
		logger.Warn(errors.Wrap(err, "failed restoring donation snapshot, starting empty").Error())
		return
	}
	donations.Restore(restored)
	logger.Info("restored donation snapshot", zap.Int("donations", len(restored)))
}

func configureRedis(address string) (*redis.Client, error) {
	rd := redis.NewClient(&redis.Options{
		Addr: address,
		DB:   0, // use default DB
	})
	if err := rd.Ping(context.Background()); err.Err() != nil {
		return nil, errors.Wrap(err.Err(), "failed to ping redis")
	}
	return rd, nil
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"github.com/routeforge/dispatch/pkg/vrp"
)

// runConfig is the JSON config accepted by the CLI per spec §6: sizing
// hints cross-checked against the loaded problem, plus the generator
// and GA budgets.
type runConfig struct {
	NCouriers   int `json:"n_couriers"`
	NVehicles   int `json:"n_vehicles"`
	NPackages   int `json:"n_packages"`
	NumToFind   int `json:"num_to_find"`
	MaxAttempts int `json:"max_attempts"`
	MaxIter     int `json:"max_iter"`
	Seed        int64 `json:"seed"`
}

func main() {
	configPath := flag.String("config", "", "path to the run config JSON")
	problemPath := flag.String("problem", "", "path to the problem JSON")
	flag.Parse()

	if err := run(*configPath, *problemPath); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(configPath, problemPath string) error {
	if configPath == "" || problemPath == "" {
		return &vrp.ValidationError{Field: "flags", Reason: "both -config and -problem are required"}
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	problemData, err := os.ReadFile(problemPath)
	if err != nil {
		return &vrp.IOFailure{Op: "read problem file", Err: err}
	}
	problem, err := vrp.Decode(problemData)
	if err != nil {
		return err
	}

	if err := validateSizing(cfg, problem); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	population, err := vrp.GenerateInitialPopulation(problem, cfg.NumToFind, cfg.MaxAttempts, rng)
	if len(population) < cfg.NumToFind {
		log.Printf("warning: found %d/%d feasible solutions, running GA on what was found", len(population), cfg.NumToFind)
	}
	if len(population) == 0 {
		if err != nil {
			return err
		}
		return &vrp.InfeasibleConstruction{Requested: cfg.NumToFind, Found: 0, Attempts: cfg.MaxAttempts}
	}

	ga := vrp.NewGA(problem, cfg.MaxIter)
	var best *vrp.Solution
	var bestCost float64
	for iteration := range ga.Run(context.Background(), population, rng) {
		best = iteration.Best
		bestCost = iteration.BestCost
	}

	fmt.Printf("best cost: %.4f\n", bestCost)
	fmt.Printf("routes:\n")
	for j := 0; j < problem.NumVehicles(); j++ {
		route := best.RouteOf(j, true, true)
		if len(route) <= 2 {
			continue
		}
		fmt.Printf("  vehicle %d: %v\n", j, route)
	}
	return nil
}

func loadConfig(path string) (runConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return runConfig{}, &vrp.IOFailure{Op: "read config file", Err: err}
	}

	var cfg runConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return runConfig{}, &vrp.IOFailure{Op: "parse config file", Err: err}
	}

	if cfg.NumToFind <= 0 || cfg.MaxAttempts <= 0 || cfg.MaxIter <= 0 {
		return runConfig{}, &vrp.ValidationError{Field: "config", Reason: "num_to_find, max_attempts and max_iter must all be positive"}
	}
	return cfg, nil
}

func validateSizing(cfg runConfig, problem *vrp.Problem) error {
	if cfg.NCouriers != 0 && cfg.NCouriers != problem.NumCouriers() {
		return &vrp.ConfigMismatch{Key: "n_couriers", Reason: "does not match the loaded problem"}
	}
	if cfg.NVehicles != 0 && cfg.NVehicles != problem.NumVehicles() {
		return &vrp.ConfigMismatch{Key: "n_vehicles", Reason: "does not match the loaded problem"}
	}
	if cfg.NPackages != 0 && cfg.NPackages != problem.NumPackages() {
		return &vrp.ConfigMismatch{Key: "n_packages", Reason: "does not match the loaded problem"}
	}
	return nil
}

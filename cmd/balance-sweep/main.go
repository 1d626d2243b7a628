// Command balance-sweep diagnoses the imbalance of the balance projectors
// over a sweep of averaging passes and diagnosis periods, stores the
// measurements in a sqlite database, and optionally plots imbalance against
// averaging passes.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/gordi42/geobalance/internal/balance"
	"github.com/gordi42/geobalance/internal/config"
	"github.com/gordi42/geobalance/internal/eigen"
	"github.com/gordi42/geobalance/internal/initcond"
	"github.com/gordi42/geobalance/internal/monitoring"
	"github.com/gordi42/geobalance/internal/runstore"
	"github.com/gordi42/geobalance/internal/state"
	"github.com/gordi42/geobalance/internal/swm"
	"github.com/gordi42/geobalance/internal/version"
)

// parseCSVIntSlice parses a comma-separated list of ints
func parseCSVIntSlice(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid int '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// parseCSVFloatSlice parses a comma-separated list of floats
func parseCSVFloatSlice(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func main() {
	scenarioPath := flag.String("scenario", "", "Scenario JSON file (defaults to built-in scenario)")
	dbPath := flag.String("db", "balance-sweep.db", "Sqlite database for sweep results")
	plotPath := flag.String("plot", "", "Output PNG plotting imbalance vs averaging passes (empty disables)")

	methods := flag.String("methods", "spectral,time_average,optimal_balance", "Comma-separated projection methods to diagnose")
	nAveList := flag.String("n-ave", "1,2,3,4", "Comma-separated averaging pass counts for the time-average method")
	diagList := flag.String("diag-periods", "", "Comma-separated diagnosis periods (defaults to the scenario period)")
	verbose := flag.Bool("verbose", false, "Log per-iteration balancing output")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Parse()
	if *showVersion {
		fmt.Printf("balance-sweep %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	monitoring.Verbose = *verbose

	sc := config.DefaultScenario()
	if *scenarioPath != "" {
		var err error
		sc, err = config.LoadScenario(*scenarioPath)
		if err != nil {
			log.Fatalf("Failed to load scenario: %v", err)
		}
	}

	nAves, err := parseCSVIntSlice(*nAveList)
	if err != nil {
		log.Fatalf("Invalid -n-ave: %v", err)
	}
	diagPeriods, err := parseCSVFloatSlice(*diagList)
	if err != nil {
		log.Fatalf("Invalid -diag-periods: %v", err)
	}
	if len(diagPeriods) == 0 {
		diagPeriods = []float64{sc.GetDiagPeriod()}
	}

	set := sc.ModelSettings()
	model, err := swm.New(set)
	if err != nil {
		log.Fatalf("Failed to build model: %v", err)
	}
	variant, err := eigen.NewShallowWater(set.F0, set.Csqr)
	if err != nil {
		log.Fatalf("Invalid physical parameters: %v", err)
	}
	es, err := eigen.Build(model.Grid(), variant)
	if err != nil {
		log.Fatalf("Failed to build eigenspace: %v", err)
	}

	z, err := initialState(sc, es)
	if err != nil {
		log.Fatalf("Failed to build initial state: %v", err)
	}
	log.Printf("Initial state: norm %.4g on %v grid", z.NormL2(), set.Resolution)

	store, err := runstore.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open results database: %v", err)
	}
	defer store.Close()

	scenarioJSON, err := json.Marshal(sc)
	if err != nil {
		log.Fatalf("Failed to encode scenario: %v", err)
	}
	runID, err := store.CreateRun(string(scenarioJSON))
	if err != nil {
		log.Fatalf("Failed to create run: %v", err)
	}

	var results []runstore.Result
	for _, method := range strings.Split(*methods, ",") {
		method = strings.TrimSpace(method)
		for _, period := range diagPeriods {
			for _, r := range diagnoseMethod(sc, model, es, z, method, period, nAves) {
				if err := store.RecordImbalance(runID, r); err != nil {
					log.Fatalf("Failed to record result: %v", err)
				}
				results = append(results, r)
			}
		}
	}
	log.Printf("Run %s complete: %d measurements in %s", runID, len(results), *dbPath)

	if *plotPath != "" {
		if err := plotResults(*plotPath, results); err != nil {
			log.Fatalf("Failed to write plot: %v", err)
		}
		log.Printf("Wrote %s", *plotPath)
	}
}

func initialState(sc *config.Scenario, es *eigen.Eigenspace) (*state.State, error) {
	z, err := initcond.Jet(es, sc.GetJetAmplitude(), sc.GetJetWidth())
	if err != nil {
		return nil, err
	}
	if stddev := sc.GetNoiseStddev(); stddev > 0 {
		noise, err := initcond.RandomNoise(es.Grid(), es.Keys(), sc.GetNoiseSeed(), stddev)
		if err != nil {
			return nil, err
		}
		if _, err := z.AddInPlace(noise); err != nil {
			return nil, err
		}
	}
	return z, nil
}

// diagnoseMethod measures the imbalance of one projection method. The
// time-average method is swept over the requested pass counts; the other
// methods yield a single measurement per diagnosis period.
func diagnoseMethod(sc *config.Scenario, model *swm.Model, es *eigen.Eigenspace, z *state.State, method string, period float64, nAves []int) []runstore.Result {
	projectors := func() []runstore.Result {
		switch method {
		case "spectral":
			return []runstore.Result{{Method: method, DiagPeriod: period}}
		case "time_average":
			out := make([]runstore.Result, 0, len(nAves))
			for _, n := range nAves {
				out = append(out, runstore.Result{
					Method:          method,
					NAve:            n,
					BackwardForward: sc.GetBackwardForward(),
					DiagPeriod:      period,
				})
			}
			return out
		case "optimal_balance":
			return []runstore.Result{{Method: method, DiagPeriod: period}}
		default:
			log.Fatalf("Unknown method %q (must be spectral, time_average, or optimal_balance)", method)
			return nil
		}
	}()

	geo := balance.NewGeostrophicSpectral(es)
	for i := range projectors {
		r := &projectors[i]
		var proj balance.Projector
		var err error
		switch method {
		case "spectral":
			proj = geo
		case "time_average":
			proj, err = balance.NewTimeAverage(model, es, balance.TimeAverageConfig{
				NAve:            r.NAve,
				BackwardForward: r.BackwardForward,
				MaxPeriod:       sc.GetMaxPeriod(),
			})
		case "optimal_balance":
			proj, err = balance.NewOptimalBalance(model, geo, balance.OptimalBalanceConfig{
				RampPeriod:      sc.GetRampPeriod(),
				RampType:        balance.RampType(sc.GetRampType()),
				MaxIterations:   sc.GetMaxIterations(),
				StopTolerance:   sc.GetStopTolerance(),
				UpdateBasePoint: true,
			})
		}
		if err != nil {
			log.Fatalf("Failed to build %s projector: %v", method, err)
		}
		diag, err := balance.NewImbalance(model, r.DiagPeriod, proj, nil)
		if err != nil {
			log.Fatalf("Failed to build diagnostic: %v", err)
		}

		start := time.Now()
		imb, err := diag.Diagnose(z)
		if err != nil {
			log.Fatalf("Diagnosis failed for %s (n_ave=%d, period=%g): %v", method, r.NAve, r.DiagPeriod, err)
		}
		r.Imbalance = imb
		r.Elapsed = time.Since(start)
		log.Printf("%-16s n_ave=%-2d period=%-6g imbalance=%.4e (%s)", method, r.NAve, r.DiagPeriod, imb, r.Elapsed.Round(time.Millisecond))
	}
	return projectors
}

// plotResults draws imbalance against averaging passes for the
// time-average method, with the single-valued methods as reference lines.
func plotResults(path string, results []runstore.Result) error {
	p := plot.New()
	p.Title.Text = "Imbalance vs averaging passes"
	p.X.Label.Text = "n_ave"
	p.Y.Label.Text = "Imbalance"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}

	taPts := make(plotter.XYs, 0)
	var refLines []interface{}
	refs := map[string]float64{}
	for _, r := range results {
		switch r.Method {
		case "time_average":
			if r.Imbalance > 0 {
				taPts = append(taPts, plotter.XY{X: float64(r.NAve), Y: r.Imbalance})
			}
		default:
			refs[r.Method] = r.Imbalance
		}
	}
	if len(taPts) > 0 {
		refLines = append(refLines, "time_average", taPts)
	}
	for method, imb := range refs {
		if imb <= 0 || len(taPts) == 0 {
			continue
		}
		line := plotter.XYs{
			{X: taPts[0].X, Y: imb},
			{X: taPts[len(taPts)-1].X, Y: imb},
		}
		refLines = append(refLines, method, line)
	}
	if err := plotutil.AddLinePoints(p, refLines...); err != nil {
		return fmt.Errorf("add series: %w", err)
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}

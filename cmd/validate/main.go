// Command validate checks a flood model artifact before it is deployed: it
// must parse, declare only features the extractor produces, and return a
// probability in [0,1] for a set of reference samples.
//
// Usage:
//
//	go run ./cmd/validate -model ml/flood_xgb.json
//	go run ./cmd/validate -model ml/flood_xgb.json -samples testdata/samples.json
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/climate-risk-engine/internal/domain"
	"github.com/couchcryptid/climate-risk-engine/internal/model"
)

// referenceSamples span dry, wet, and saturated conditions.
var referenceSamples = []namedSample{
	{Name: "dry", Sample: domain.WeatherSample{WindSpeed: 5, HourlyPrecipitation: []float64{0, 0, 0}, HourlyHumidity: []float64{40}}},
	{Name: "showers", Sample: domain.WeatherSample{WindSpeed: 15, HourlyPrecipitation: []float64{0, 1, 2, 0, 3, 1, 2}, HourlyHumidity: []float64{75}}},
	{Name: "monsoon", Sample: domain.WeatherSample{WindSpeed: 40, HourlyPrecipitation: []float64{20, 35, 50, 40, 30, 45, 60}, HourlyHumidity: []float64{98}}},
	{Name: "no data", Sample: domain.WeatherSample{}},
}

type namedSample struct {
	Name   string               `json:"name"`
	Sample domain.WeatherSample `json:"sample"`
}

func main() {
	modelPath := flag.String("model", "ml/flood_xgb.json", "path to the flood model artifact")
	samplesPath := flag.String("samples", "", "optional JSON file of named weather samples to score")
	flag.Parse()

	os.Exit(run(os.Stdout, *modelPath, *samplesPath))
}

func run(w io.Writer, modelPath, samplesPath string) int {
	artifact, err := model.LoadArtifact(modelPath)
	if err != nil {
		fmt.Fprintf(w, "FAIL load: %v\n", err)
		return 1
	}
	fmt.Fprintf(w, "PASS load: %d features %v\n", len(artifact.FeatureNames), artifact.FeatureNames)

	if err := artifact.CheckSchema(domain.FeatureNames); err != nil {
		var missing *domain.MissingFeatureError
		if errors.As(err, &missing) {
			fmt.Fprintf(w, "FAIL schema: extractor does not produce %q\n", missing.Name)
		} else {
			fmt.Fprintf(w, "FAIL schema: %v\n", err)
		}
		return 1
	}
	fmt.Fprintln(w, "PASS schema")

	samples := referenceSamples
	if samplesPath != "" {
		samples, err = loadSamples(samplesPath)
		if err != nil {
			fmt.Fprintf(w, "FAIL samples: %v\n", err)
			return 1
		}
	}

	estimator := model.NewEstimator(artifact)
	failed := 0
	for _, s := range samples {
		if err := domain.ValidateSample(s.Sample); err != nil {
			fmt.Fprintf(w, "FAIL %s: %v\n", s.Name, err)
			failed++
			continue
		}
		v, err := estimator.Estimate(domain.ExtractFeatures(s.Sample))
		if err != nil {
			fmt.Fprintf(w, "FAIL %s: %v\n", s.Name, err)
			failed++
			continue
		}
		if v.Score < 0 || v.Score > 1 {
			fmt.Fprintf(w, "FAIL %s: score %v outside [0,1]\n", s.Name, v.Score)
			failed++
			continue
		}
		fmt.Fprintf(w, "PASS %s: score=%v level=%s\n", s.Name, v.Score, v.Level)
	}

	if failed > 0 {
		fmt.Fprintf(w, "%d of %d samples failed\n", failed, len(samples))
		return 1
	}
	return 0
}

func loadSamples(path string) ([]namedSample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var samples []namedSample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%s contains no samples", path)
	}
	return samples, nil
}

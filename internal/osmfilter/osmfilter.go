// Package osmfilter drives the external OSM extract tooling: osmium
// tags-filter to cut the planet extract down to drivable ways, then ogr2ogr
// to convert the filtered extract into a GeoPackage the join stage can read.
// Failures are never retried; re-running the stage is the recovery path.
package osmfilter

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// highwayTypes is the allowlist of way classes a bridge can plausibly carry.
var highwayTypes = []string{
	"motorway", "motorway_link",
	"trunk", "trunk_link",
	"primary", "primary_link",
	"secondary", "secondary_link",
	"tertiary", "tertiary_link",
	"unclassified", "residential",
	"service", "services",
	"track", "road",
}

// Runner executes one external command. Tests substitute a fake.
type Runner func(ctx context.Context, name string, args ...string) error

// Filter invokes osmium and ogr2ogr with configured binary paths and a
// per-invocation timeout.
type Filter struct {
	OsmiumPath  string
	Ogr2ogrPath string
	Timeout     time.Duration

	run Runner
}

// New builds a Filter with the default runner. Empty paths fall back to the
// bare binary names on PATH.
func New(osmiumPath, ogr2ogrPath string, timeout time.Duration) *Filter {
	if osmiumPath == "" {
		osmiumPath = "osmium"
	}
	if ogr2ogrPath == "" {
		ogr2ogrPath = "ogr2ogr"
	}
	return &Filter{
		OsmiumPath:  osmiumPath,
		Ogr2ogrPath: ogr2ogrPath,
		Timeout:     timeout,
		run:         runCommand,
	}
}

// WithRunner replaces the command runner, for tests.
func (f *Filter) WithRunner(r Runner) *Filter {
	f.run = r
	return f
}

// FilterWays runs osmium tags-filter over inputPBF, keeping only ways whose
// highway tag is on the allowlist, writing outputPBF.
func (f *Filter) FilterWays(ctx context.Context, inputPBF, outputPBF string) error {
	args := []string{"tags-filter", inputPBF}
	for _, hw := range highwayTypes {
		args = append(args, "w/highway="+hw)
	}
	args = append(args, "-o", outputPBF, "--overwrite")
	return f.exec(ctx, f.OsmiumPath, args)
}

// ConvertToGeoPackage runs ogr2ogr to turn the filtered extract into a
// GeoPackage.
func (f *Filter) ConvertToGeoPackage(ctx context.Context, inputPBF, outputGPKG string) error {
	return f.exec(ctx, f.Ogr2ogrPath, []string{"-f", "GPKG", outputGPKG, inputPBF})
}

// Run performs the full stage: filter, then convert.
func (f *Filter) Run(ctx context.Context, inputPBF, filteredPBF, outputGPKG string) error {
	if err := f.FilterWays(ctx, inputPBF, filteredPBF); err != nil {
		return err
	}
	return f.ConvertToGeoPackage(ctx, filteredPBF, outputGPKG)
}

func (f *Filter) exec(ctx context.Context, name string, args []string) error {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	// The full argv is logged so a failed stage can be reproduced by hand.
	zap.L().Info("running external tool",
		zap.String("cmd", name),
		zap.Strings("args", args))
	if err := f.run(ctx, name, args...); err != nil {
		return eris.Wrapf(err, "osmfilter: %s failed", name)
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return eris.Wrapf(err, "run %s: %s", name, stderr.String())
	}
	return nil
}

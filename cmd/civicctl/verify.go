package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/samirrijal/civicconnect/internal/adapters/exif"
	"github.com/samirrijal/civicconnect/internal/core/domain"
	"github.com/samirrijal/civicconnect/internal/core/usecases"
)

type verifyOptions struct {
	lat, lng    float64
	now         string
	maxDistance float64
	maxAge      time.Duration
}

func newVerifyCmd() *cobra.Command {
	var opts verifyOptions
	cmd := &cobra.Command{
		Use:   "verify --lat LAT --lng LNG [--now RFC3339] FILE...",
		Short: "Check photos against a declared location",
		Long: `Reads the EXIF GPS position and capture time of each photo and prints
one verdict per file, as it would be stored with a reported issue.

$ civicctl verify --lat 12.9716 --lng 77.5946 road.jpg
road.jpg	Verified	ok	distance=3.2m	age=1h0m0s
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.OutOrStdout(), opts, args)
		},
	}
	f := cmd.Flags()
	f.Float64Var(&opts.lat, "lat", 0, "declared latitude")
	f.Float64Var(&opts.lng, "lng", 0, "declared longitude")
	f.StringVar(&opts.now, "now", "", "evaluate at this instant instead of the current time (RFC3339)")
	f.Float64Var(&opts.maxDistance, "max-distance", usecases.DefaultMaxDistanceMeters, "maximum distance in meters")
	f.DurationVar(&opts.maxAge, "max-age", usecases.DefaultMaxAge, "maximum photo age")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")
	return cmd
}

func runVerify(out io.Writer, opts verifyOptions, files []string) error {
	now := time.Now()
	if opts.now != "" {
		t, err := time.Parse(time.RFC3339, opts.now)
		if err != nil {
			return fmt.Errorf("--now: %w", err)
		}
		now = t
	}
	verifier := usecases.NewPhotoVerifier(exif.NewExtractor(), opts.maxDistance, opts.maxAge)
	declared := domain.GeoPoint{Lat: opts.lat, Lng: opts.lng}

	var bar *progressbar.ProgressBar
	if len(files) > 1 && isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription("Verifying"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	failed := 0
	for _, name := range files {
		line, err := verifyFile(verifier, name, declared, now)
		if err != nil {
			failed++
			line = fmt.Sprintf("%s\terror\t%v", name, err)
		}
		fmt.Fprintln(out, line)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be read", failed, len(files))
	}
	return nil
}

func verifyFile(v *usecases.PhotoVerifier, name string, declared domain.GeoPoint, now time.Time) (string, error) {
	f, err := os.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	r := v.Inspect(f, declared, now)
	line := fmt.Sprintf("%s\t%s\t%s", name, r.Verdict.Reason, r.Verdict.Cause)
	if r.DistanceMeters != nil {
		line += fmt.Sprintf("\tdistance=%.1fm", *r.DistanceMeters)
	}
	if r.Age != nil {
		line += "\tage=" + r.Age.Round(time.Second).String()
	}
	return line, nil
}

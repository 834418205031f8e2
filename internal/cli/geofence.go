// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tomtom215/fieldsync/internal/geofence"
	"github.com/tomtom215/fieldsync/internal/validation"
)

// coordinate is a parsed command line position.
type coordinate struct {
	Latitude  float64 `validate:"latitude"`
	Longitude float64 `validate:"longitude"`
}

// GeofenceResult is the result of geofence check.
type GeofenceResult struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Allowed   bool    `json:"allowed"`
	TurfID    string  `json:"turf_id,omitempty"`
	TurfName  string  `json:"turf_name,omitempty"`
	Turfs     int     `json:"turfs"`
}

func (r GeofenceResult) String() string {
	switch {
	case r.Turfs == 0:
		return fmt.Sprintf("%.6f,%.6f: allowed (no turf restriction)", r.Latitude, r.Longitude)
	case r.Allowed:
		return fmt.Sprintf("%.6f,%.6f: inside turf %q (%s)", r.Latitude, r.Longitude, r.TurfName, r.TurfID)
	default:
		return fmt.Sprintf("%.6f,%.6f: outside all %d turf(s)", r.Latitude, r.Longitude, r.Turfs)
	}
}

// NewGeofenceCommand creates the geofence command group.
func NewGeofenceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "geofence",
		Short: "Test positions against the turf boundaries",
	}

	var turfFile string
	check := &cobra.Command{
		Use:   "check <latitude>,<longitude> | -- <latitude> <longitude>",
		Short: "Report which turf contains a position",
		Long: `Report which turf contains a position, and so whether new addresses may
be created there. Exits with status 1 when the position is outside every turf.

A negative coordinate looks like a flag, so either pass the position as one
"lat,lon" argument or put "--" before the two coordinates.`,
		Example: `  fieldsync geofence check 40.0,-75.0
  fieldsync geofence check -- 40.0 -75.0`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGeofenceCheck(rootOpts, turfFile, args, cmd)
		},
	}
	check.Flags().StringVarP(&turfFile, "turf-file", "t", "", "turf file (default: form.turf_file from the config)")
	cmd.AddCommand(check)
	return cmd
}

func runGeofenceCheck(opts *RootOptions, turfFile string, args []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	lat, lon, ok := args[0], "", len(args) == 2
	if ok {
		lon = args[1]
	} else {
		lat, lon, ok = strings.Cut(args[0], ",")
	}
	if !ok {
		return f.fail(ExitCommandError, ErrCodeArgument, "invalid position", fmt.Errorf("want lat,lon, got %q", args[0]))
	}
	pos, err := parseCoordinate(strings.TrimSpace(lat), strings.TrimSpace(lon))
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeArgument, "invalid position", err)
	}

	if turfFile == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeConfig, "failed to load configuration", err)
		}
		turfFile = cfg.Form.TurfFile
	}
	f.VerboseLog("Loading turfs from %q", turfFile)
	turfs, err := geofence.LoadTurfs(turfFile)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeGeofence, "failed to load turfs", err)
	}

	p := geofence.Point{Lon: pos.Longitude, Lat: pos.Latitude}
	res := GeofenceResult{
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
		Allowed:   geofence.Allowed(p, turfs),
		Turfs:     len(turfs),
	}
	if t, ok := geofence.SelectActiveBoundary(p, turfs); ok {
		res.TurfID, res.TurfName = t.ID, t.Name
	}

	if err := f.Success(res); err != nil {
		return err
	}
	if !res.Allowed {
		return NewExitError(ExitFailure, "position is outside every turf")
	}
	return nil
}

func parseCoordinate(lat, lon string) (coordinate, error) {
	var c coordinate
	var err error
	if c.Latitude, err = strconv.ParseFloat(lat, 64); err != nil {
		return c, fmt.Errorf("latitude %q: %w", lat, err)
	}
	if c.Longitude, err = strconv.ParseFloat(lon, 64); err != nil {
		return c, fmt.Errorf("longitude %q: %w", lon, err)
	}
	if err := validation.ValidateStruct(&c); err != nil {
		return c, err
	}
	return c, nil
}

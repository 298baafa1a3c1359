// Package sink publishes run output to InfluxDB for the trends
// dashboards.
package sink

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/uidai-stress/internal/config"
	"github.com/uidai-stress/internal/feature"
	"github.com/uidai-stress/internal/model"
)

// points per write request
const writeBatch = 5000

// InfluxConfig carries the connection settings.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// InfluxFromEnv reads the INFLUX_* environment variables.
func InfluxFromEnv() InfluxConfig {
	return InfluxConfig{
		URL:    config.GetEnv("INFLUX_URL", "http://localhost:8086"),
		Token:  config.GetEnv("INFLUX_TOKEN", ""),
		Org:    config.GetEnv("INFLUX_ORG", "uidai"),
		Bucket: config.GetEnv("INFLUX_BUCKET", "stress"),
	}
}

// Influx publishes activity series and stress snapshots. Writes are
// blocking so a failed publish fails the command instead of vanishing
// into a background buffer.
type Influx struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
}

// NewInflux connects and verifies the server is reachable.
func NewInflux(ctx context.Context, cfg InfluxConfig) (*Influx, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB at %s: %w", cfg.URL, err)
	}
	return &Influx{client: client, write: client.WriteAPIBlocking(cfg.Org, cfg.Bucket)}, nil
}

// PublishActivity writes one district_activity point per district per
// day. Rows are collapsed across pincodes first; pincode stays out of
// the tag set to keep series cardinality bounded.
func (x *Influx) PublishActivity(ctx context.Context, rows []model.AggregateRow) (int, error) {
	type dayKey struct {
		date time.Time
		key  model.DistrictKey
	}
	byDay := make(map[dayKey]model.Counts)
	for _, row := range rows {
		k := dayKey{date: row.Date, key: model.DistrictKey{State: row.State, District: row.District}}
		byDay[k] = byDay[k].Add(row.Counts)
	}

	points := make([]*write.Point, 0, len(byDay))
	for k, c := range byDay {
		points = append(points, write.NewPoint(
			"district_activity",
			map[string]string{
				"state":    k.key.State,
				"district": k.key.District,
			},
			map[string]interface{}{
				"enrolments":          c.Enrolments(),
				"biometric_updates":   c.BiometricUpdates(),
				"demographic_updates": c.DemographicUpdates(),
				"total_updates":       c.Updates(),
				"overall_activity":    c.Enrolments() + c.Updates(),
				"eur":                 feature.Ratio(c.Updates(), c.Enrolments()),
			},
			k.date,
		))
	}
	if err := x.writeAll(ctx, points); err != nil {
		return 0, fmt.Errorf("failed to write activity points: %w", err)
	}
	return len(points), nil
}

// PublishProfiles writes the scored district snapshot stamped with the
// run time. The percentile field is omitted for insufficient-peer
// districts rather than written as a fake number.
func (x *Influx) PublishProfiles(ctx context.Context, profiles []model.StressProfile, at time.Time) (int, error) {
	points := make([]*write.Point, 0, len(profiles))
	for _, p := range profiles {
		fields := map[string]interface{}{
			"eur_mean":           p.EURMean,
			"eur_std":            p.EURStd,
			"peer_count":         p.PeerCount,
			"avg_daily_activity": p.AvgDailyActivity(),
			"daily_gap":          p.DailyGap,
			"operators_needed":   p.OperatorsNeeded,
			"monthly_cost":       p.MonthlyCost,
		}
		if p.HasPercentile() {
			fields["stress_percentile"] = p.StressPercentile
		}
		points = append(points, write.NewPoint(
			"district_stress",
			map[string]string{
				"state":          p.State,
				"district":       p.District,
				"window_class":   string(p.WindowClass),
				"category":       string(p.Category),
				"recommendation": string(p.Recommendation),
			},
			fields,
			at,
		))
	}
	if err := x.writeAll(ctx, points); err != nil {
		return 0, fmt.Errorf("failed to write stress points: %w", err)
	}
	return len(points), nil
}

func (x *Influx) writeAll(ctx context.Context, points []*write.Point) error {
	for start := 0; start < len(points); start += writeBatch {
		end := start + writeBatch
		if end > len(points) {
			end = len(points)
		}
		if err := x.write.WritePoint(ctx, points[start:end]...); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying HTTP client.
func (x *Influx) Close() {
	x.client.Close()
}

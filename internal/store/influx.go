package store

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sirupsen/logrus"

	pterrors "pytestlab/internal/errors"
)

// Influx stores each record as one point in a measurement named
// "pytestlab_record", tagged by id so Get is a point lookup and Search is
// a tag/field scan. InfluxDB is a time-series store, not a natural fit
// for opaque blob storage, but every record already carries a
// monotonic/wall-clock timestamp, so a record-per-point mapping is a
// legitimate use, exercised the way the bench descriptor's
// backend_defaults block lets an operator choose a backend.
type Influx struct {
	client influxdb2.Client
	org    string
	bucket string
	log    *logrus.Logger
}

func NewInflux(url, token, org, bucket string, log *logrus.Logger) *Influx {
	return &Influx{client: influxdb2.NewClient(url, token), org: org, bucket: bucket, log: log}
}

func (s *Influx) writeAPI() api.WriteAPIBlocking { return s.client.WriteAPIBlocking(s.org, s.bucket) }
func (s *Influx) queryAPI() api.QueryAPI         { return s.client.QueryAPI(s.org) }

func (s *Influx) Put(ctx context.Context, id, title, description string, blob []byte) (string, error) {
	if id == "" {
		id = fmt.Sprintf("%x", blob[:min(8, len(blob))])
	}
	point := influxdb2.NewPoint(
		"pytestlab_record",
		map[string]string{"id": id, "title": title},
		map[string]any{"description": description, "blob": base64.StdEncoding.EncodeToString(blob)},
		time.Now(),
	)
	if err := s.writeAPI().WritePoint(ctx, point); err != nil {
		return "", pterrors.NewConfigError("influx store put", err)
	}
	return id, nil
}

func (s *Influx) PutEnvelope(ctx context.Context, id string, envelope []byte) error {
	point := influxdb2.NewPoint(
		"pytestlab_envelope",
		map[string]string{"id": id},
		map[string]any{"envelope": base64.StdEncoding.EncodeToString(envelope)},
		time.Now(),
	)
	if err := s.writeAPI().WritePoint(ctx, point); err != nil {
		return pterrors.NewConfigError("influx store put envelope", err)
	}
	return nil
}

func (s *Influx) Get(ctx context.Context, id string) ([]byte, error) {
	return s.queryLatestField(ctx, "pytestlab_record", id, "blob")
}

func (s *Influx) GetEnvelope(ctx context.Context, id string) ([]byte, error) {
	return s.queryLatestField(ctx, "pytestlab_envelope", id, "envelope")
}

func (s *Influx) queryLatestField(ctx context.Context, measurement, id, field string) ([]byte, error) {
	flux := fmt.Sprintf(`from(bucket: %q)
  |> range(start: 0)
  |> filter(fn: (r) => r._measurement == %q and r.id == %q and r._field == %q)
  |> last()`, s.bucket, measurement, id, field)

	result, err := s.queryAPI().Query(ctx, flux)
	if err != nil {
		return nil, pterrors.NewConfigError("influx store query", err)
	}
	defer result.Close()

	if result.Next() {
		encoded, _ := result.Record().Value().(string)
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, pterrors.NewConfigError("influx store decode", err)
		}
		return decoded, nil
	}
	if result.Err() != nil {
		return nil, pterrors.NewConfigError("influx store query", result.Err())
	}
	return nil, pterrors.NewConfigError("influx store get", fmt.Errorf("no record %q", id))
}

// Search reads the latest description field of every record and keeps
// those whose title tag or description contains query (case-insensitive).
// The matching runs client-side; the Flux query itself does not filter on
// query.
func (s *Influx) Search(ctx context.Context, query string) ([]Hit, error) {
	flux := fmt.Sprintf(`from(bucket: %q)
  |> range(start: 0)
  |> filter(fn: (r) => r._measurement == "pytestlab_record" and r._field == "description")
  |> last()`, s.bucket)

	result, err := s.queryAPI().Query(ctx, flux)
	if err != nil {
		return nil, pterrors.NewConfigError("influx store search", err)
	}
	defer result.Close()

	var hits []Hit
	for result.Next() {
		rec := result.Record()
		title, _ := rec.ValueByKey("title").(string)
		desc, _ := rec.Value().(string)
		id, _ := rec.ValueByKey("id").(string)
		if containsFold(title, query) || containsFold(desc, query) {
			hits = append(hits, Hit{ID: id, Title: title, Description: desc})
		}
	}
	if result.Err() != nil {
		return nil, pterrors.NewConfigError("influx store search", result.Err())
	}
	return hits, nil
}

func (s *Influx) Close() error {
	s.client.Close()
	return nil
}

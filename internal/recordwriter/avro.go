// Package recordwriter implements the streaming pkg/writer.Provider
// implementations the partition state machine opens against a fresh temp
// artifact on every rotation.
package recordwriter

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/linkedin/goavro/v2"

	"github.com/jittakal/kafeventstore/pkg/event"
	"github.com/jittakal/kafeventstore/pkg/writer"
)

// Ensure implementation satisfies interfaces at compile time.
var (
	_ writer.Provider     = (*AvroProvider)(nil)
	_ writer.RecordWriter = (*avroWriter)(nil)
)

const avroSchema = `{
	"type": "record",
	"name": "StorageRecord",
	"namespace": "com.kafka.event.store",
	"fields": [
		{"name": "spec_version", "type": "string"},
		{"name": "id", "type": "string"},
		{"name": "source", "type": "string"},
		{"name": "type", "type": "string"},
		{"name": "subject", "type": ["null", "string"], "default": null},
		{"name": "data_content_type", "type": ["null", "string"], "default": null},
		{"name": "data_schema", "type": ["null", "string"], "default": null},
		{"name": "time", "type": ["null", "string"], "default": null},
		{"name": "data", "type": "string"},
		{"name": "kafka_topic", "type": "string"},
		{"name": "kafka_partition", "type": "int"},
		{"name": "kafka_offset", "type": "long"},
		{"name": "kafka_timestamp", "type": "string"},
		{"name": "ingested_at", "type": "string"}
	]
}`

// AvroProvider produces RecordWriters that append to an Avro OCF
// (Object Container File).
type AvroProvider struct {
	codec *goavro.Codec
}

// NewAvroProvider creates a provider bound to the fixed storage-record
// schema.
func NewAvroProvider() (*AvroProvider, error) {
	codec, err := goavro.NewCodec(avroSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to create avro codec: %w", err)
	}
	return &AvroProvider{codec: codec}, nil
}

// NewWriter opens tempPath and returns a RecordWriter positioned to
// accept records. first is unused: the schema here is fixed.
func (p *AvroProvider) NewWriter(tempPath string, first event.Record) (writer.RecordWriter, error) {
	file, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{W: file, Codec: p.codec})
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create OCF writer: %w", err)
	}

	return &avroWriter{file: file, ocf: ocf}, nil
}

// FileExtension returns ".avro".
func (p *AvroProvider) FileExtension() string {
	return ".avro"
}

type avroWriter struct {
	file *os.File
	ocf  *goavro.OCFWriter
}

func (w *avroWriter) Write(ts time.Time, rec event.Record) error {
	avroMap, err := toAvroMap(rec)
	if err != nil {
		return err
	}
	return w.ocf.Append([]interface{}{avroMap})
}

func (w *avroWriter) Close() error {
	return w.file.Close()
}

func toAvroMap(record event.Record) (map[string]interface{}, error) {
	dataJSON, err := json.Marshal(record.Event.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal data: %w", err)
	}

	avroMap := map[string]interface{}{
		"spec_version":    record.Event.SpecVersion,
		"id":              record.Event.ID,
		"source":          record.Event.Source,
		"type":            record.Event.Type,
		"data":            string(dataJSON),
		"kafka_topic":     record.Kafka.Topic,
		"kafka_partition": record.Kafka.Partition,
		"kafka_offset":    record.Kafka.Offset,
		"kafka_timestamp": record.Kafka.Timestamp.Format(time.RFC3339Nano),
		"ingested_at":     record.ProcessedAt.Format(time.RFC3339Nano),
	}

	if record.Event.Subject != nil && *record.Event.Subject != "" {
		avroMap["subject"] = goavro.Union("string", *record.Event.Subject)
	} else {
		avroMap["subject"] = nil
	}
	if record.Event.DataContentType != nil && *record.Event.DataContentType != "" {
		avroMap["data_content_type"] = goavro.Union("string", *record.Event.DataContentType)
	} else {
		avroMap["data_content_type"] = nil
	}
	if record.Event.DataSchema != nil && *record.Event.DataSchema != "" {
		avroMap["data_schema"] = goavro.Union("string", *record.Event.DataSchema)
	} else {
		avroMap["data_schema"] = nil
	}
	if record.Event.Time != nil {
		avroMap["time"] = goavro.Union("string", record.Event.Time.Format(time.RFC3339Nano))
	} else {
		avroMap["time"] = nil
	}

	return avroMap, nil
}

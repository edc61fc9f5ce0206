package recordwriter

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/jittakal/kafeventstore/pkg/event"
	"github.com/jittakal/kafeventstore/pkg/writer"
)

// Ensure implementation satisfies interfaces at compile time.
var (
	_ writer.Provider     = (*ParquetProvider)(nil)
	_ writer.RecordWriter = (*parquetWriter)(nil)
)

// cloudEventRow is the Parquet schema for storage records, kept native
// for Athena/Hive compatibility.
type cloudEventRow struct {
	SpecVersion string `parquet:"spec_version,dict"`
	ID          string `parquet:"id,dict"`
	Source      string `parquet:"source,dict"`
	Type        string `parquet:"type,dict"`
	Data        string `parquet:"data"`

	Subject         *string    `parquet:"subject,dict,optional"`
	DataContentType *string    `parquet:"data_content_type,dict,optional"`
	DataSchema      *string    `parquet:"data_schema,dict,optional"`
	Time            *time.Time `parquet:"time,timestamp(microsecond),optional"`

	KafkaTopic     string    `parquet:"kafka_topic,dict"`
	KafkaPartition int32     `parquet:"kafka_partition"`
	KafkaOffset    int64     `parquet:"kafka_offset"`
	KafkaTimestamp time.Time `parquet:"kafka_timestamp,timestamp(microsecond)"`

	IngestedAt time.Time `parquet:"ingested_at,timestamp(microsecond)"`
}

// ParquetProvider produces RecordWriters backed by parquet-go's
// GenericWriter.
type ParquetProvider struct {
	compression string
}

// NewParquetProvider creates a provider using the given compression codec
// name (snappy, gzip, lz4, zstd, uncompressed). An empty name selects
// snappy; an unrecognized name selects uncompressed.
func NewParquetProvider(compression string) *ParquetProvider {
	return &ParquetProvider{compression: compression}
}

// NewWriter opens tempPath and returns a RecordWriter. first is unused:
// the schema here is fixed.
func (p *ParquetProvider) NewWriter(tempPath string, first event.Record) (writer.RecordWriter, error) {
	file, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	schema := parquet.SchemaOf(new(cloudEventRow))
	pw := parquet.NewGenericWriter[cloudEventRow](
		file,
		schema,
		compressionCodec(p.compression),
		parquet.CreatedBy("kafeventstore", "1.0", "0"),
	)

	return &parquetWriter{file: file, writer: pw}, nil
}

// FileExtension returns ".parquet".
func (p *ParquetProvider) FileExtension() string {
	return ".parquet"
}

func compressionCodec(compression string) parquet.WriterOption {
	switch compression {
	case "snappy", "SNAPPY", "":
		return parquet.Compression(&parquet.Snappy)
	case "gzip", "GZIP":
		return parquet.Compression(&parquet.Gzip)
	case "lz4", "LZ4":
		return parquet.Compression(&parquet.Lz4Raw)
	case "zstd", "ZSTD":
		return parquet.Compression(&parquet.Zstd)
	default:
		return parquet.Compression(&parquet.Uncompressed)
	}
}

type parquetWriter struct {
	file   *os.File
	writer *parquet.GenericWriter[cloudEventRow]
}

func (w *parquetWriter) Write(ts time.Time, rec event.Record) error {
	row, err := toParquetRow(rec)
	if err != nil {
		return err
	}
	_, err = w.writer.Write([]cloudEventRow{row})
	return err
}

func (w *parquetWriter) Close() error {
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func toParquetRow(record event.Record) (cloudEventRow, error) {
	dataJSON, err := json.Marshal(record.Event.Data)
	if err != nil {
		return cloudEventRow{}, fmt.Errorf("failed to marshal data: %w", err)
	}

	row := cloudEventRow{
		SpecVersion:     record.Event.SpecVersion,
		ID:              record.Event.ID,
		Source:          record.Event.Source,
		Type:            record.Event.Type,
		Data:            string(dataJSON),
		Subject:         record.Event.Subject,
		DataContentType: record.Event.DataContentType,
		DataSchema:      record.Event.DataSchema,
		Time:            record.Event.Time,
		KafkaTopic:      record.Kafka.Topic,
		KafkaPartition:  record.Kafka.Partition,
		KafkaOffset:     record.Kafka.Offset,
		KafkaTimestamp:  record.Kafka.Timestamp,
		IngestedAt:      record.ProcessedAt,
	}
	return row, nil
}

package minio

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/datascienceChris/datahub/internal/core"
)

// Envelope is one line of a JSONL part.
type Envelope struct {
	WorkUnitID string               `json:"workUnitId"`
	RunID      string               `json:"runId"`
	Record     *core.MetadataRecord `json:"record"`
}

// parquetRow mirrors parquetSchema. Nested aspects are kept as a JSON string
// column.
type parquetRow struct {
	WorkUnitID string `json:"work_unit_id"`
	RunID      string `json:"run_id"`
	EntityURN  string `json:"entity_urn"`
	Aspects    string `json:"aspect_names"`
	Payload    string `json:"payload"`
}

const parquetSchema = `{
  "Tag": "name=parquet_go_root, repetitiontype=REQUIRED",
  "Fields": [
    {"Tag": "name=work_unit_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=REQUIRED"},
    {"Tag": "name=run_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=REQUIRED"},
    {"Tag": "name=entity_urn, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=REQUIRED"},
    {"Tag": "name=aspect_names, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=REQUIRED"},
    {"Tag": "name=payload, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=REQUIRED"}
  ]
}`

func (f Format) extension() string {
	if f == FormatParquet {
		return "parquet"
	}
	return "jsonl.gz"
}

func (f Format) contentType() string {
	if f == FormatParquet {
		return "application/vnd.apache.parquet"
	}
	return "application/gzip"
}

func encodePart(format Format, batch []Envelope) ([]byte, error) {
	if format == FormatParquet {
		return encodeParquet(batch)
	}
	return encodeJSONL(batch)
}

func encodeJSONL(batch []Envelope) ([]byte, error) {
	buf := &bytes.Buffer{}
	gz := gzip.NewWriter(buf)
	enc := json.NewEncoder(gz)
	for _, env := range batch {
		if err := enc.Encode(env); err != nil {
			_ = gz.Close()
			return nil, err
		}
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeJSONL reads back a JSONL.GZ part.
func DecodeJSONL(data []byte) ([]Envelope, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	var out []Envelope
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			return nil, fmt.Errorf("line %d: %w", len(out)+1, err)
		}
		out = append(out, env)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeParquet(batch []Envelope) ([]byte, error) {
	buf := &bytes.Buffer{}
	pfw := writerfile.NewWriterFile(buf)
	pw, err := writer.NewJSONWriter(parquetSchema, pfw, 1)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, env := range batch {
		payload, err := json.Marshal(env.Record)
		if err != nil {
			_ = pw.WriteStop()
			return nil, err
		}
		row, err := json.Marshal(parquetRow{
			WorkUnitID: env.WorkUnitID,
			RunID:      env.RunID,
			EntityURN:  env.Record.EntityURN,
			Aspects:    strings.Join(env.Record.AspectNames(), ","),
			Payload:    string(payload),
		})
		if err != nil {
			_ = pw.WriteStop()
			return nil, err
		}
		if err := pw.Write(string(row)); err != nil {
			_ = pw.WriteStop()
			return nil, err
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, err
	}
	if err := pfw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

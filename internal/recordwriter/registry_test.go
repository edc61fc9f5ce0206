package recordwriter

import "testing"

func TestDefaultRegistry_ResolvesBuiltins(t *testing.T) {
	reg, err := DefaultRegistry("snappy")
	if err != nil {
		t.Fatalf("DefaultRegistry() error = %v", err)
	}

	parquet, err := reg.Get("parquet")
	if err != nil {
		t.Fatalf("Get(parquet) error = %v", err)
	}
	if parquet.FileExtension() != ".parquet" {
		t.Errorf("FileExtension() = %q, want .parquet", parquet.FileExtension())
	}

	avro, err := reg.Get("avro")
	if err != nil {
		t.Fatalf("Get(avro) error = %v", err)
	}
	if avro.FileExtension() != ".avro" {
		t.Errorf("FileExtension() = %q, want .avro", avro.FileExtension())
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	reg, err := DefaultRegistry("snappy")
	if err != nil {
		t.Fatalf("DefaultRegistry() error = %v", err)
	}
	if _, err := reg.Get("orc"); err == nil {
		t.Error("expected error resolving unknown provider class")
	}
}

package observe

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitProvider_WriteMetrics(t *testing.T) {
	origMP := otel.GetMeterProvider()
	origTP := otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(origMP)
		otel.SetTracerProvider(origTP)
	})

	ctx := context.Background()
	p, err := InitProvider(ctx, ProviderConfig{ServiceVersion: "test"})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordSave(ctx, nil)

	var buf bytes.Buffer
	if err := p.WriteMetrics(&buf); err != nil {
		t.Fatalf("WriteMetrics: %v", err)
	}
	if !strings.Contains(buf.String(), "subreconcile_dictionary_saves") {
		t.Errorf("metrics dump does not contain the saves counter:\n%s", buf.String())
	}
}

func TestInitProvider_RegistriesAreIndependent(t *testing.T) {
	origMP := otel.GetMeterProvider()
	origTP := otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(origMP)
		otel.SetTracerProvider(origTP)
	})

	ctx := context.Background()
	first, err := InitProvider(ctx, ProviderConfig{})
	if err != nil {
		t.Fatalf("first InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = first.Shutdown(context.Background()) })

	second, err := InitProvider(ctx, ProviderConfig{})
	if err != nil {
		t.Fatalf("second InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = second.Shutdown(context.Background()) })

	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordSave(ctx, nil)

	var buf bytes.Buffer
	if err := first.WriteMetrics(&buf); err != nil {
		t.Fatalf("WriteMetrics: %v", err)
	}
	if strings.Contains(buf.String(), "subreconcile_dictionary_saves") {
		t.Errorf("first provider exported a counter recorded on the second one:\n%s", buf.String())
	}
}

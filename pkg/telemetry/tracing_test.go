// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package telemetry

import (
	"context"
	"testing"
)

func Test_SetupTracing(t *testing.T) {
	for _, exporter := range []string{"", ExporterNone, ExporterStdout} {
		shutdown, err := SetupTracing(exporter)
		if err != nil {
			t.Fatalf("exporter %q: unexpected error: %s", exporter, err)
		}
		if err := shutdown(context.Background()); err != nil {
			t.Errorf("exporter %q: shutdown failed: %s", exporter, err)
		}
	}

	if _, err := SetupTracing("jaeger"); err == nil {
		t.Errorf("expected error for unsupported exporter")
	}
}

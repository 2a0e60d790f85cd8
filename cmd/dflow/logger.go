package main

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// stdLogger adapts the standard logger to the engine's Logger interface.
type stdLogger struct {
	debug bool
}

func (l *stdLogger) Debug(_ context.Context, msg string, keysAndValues ...any) {
	if l.debug {
		log.Printf("DEBUG %s%s", msg, formatKeys(keysAndValues))
	}
}

func (l *stdLogger) Info(_ context.Context, msg string, keysAndValues ...any) {
	log.Printf("INFO %s%s", msg, formatKeys(keysAndValues))
}

func (l *stdLogger) Error(_ context.Context, msg string, keysAndValues ...any) {
	log.Printf("ERROR %s%s", msg, formatKeys(keysAndValues))
}

func formatKeys(keysAndValues []any) string {
	if len(keysAndValues) == 0 {
		return ""
	}
	var sb strings.Builder
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	if len(keysAndValues)%2 == 1 {
		fmt.Fprintf(&sb, " %v", keysAndValues[len(keysAndValues)-1])
	}
	return sb.String()
}

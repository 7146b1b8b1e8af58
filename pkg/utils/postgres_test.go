package utils

import (
	"testing"
	"time"
)

func TestPostgresPoolConfig_Defaults(t *testing.T) {
	out := PostgresPoolConfig{}.withDefaults()
	if out.MaxOpenConns != 20 || out.MaxIdleConns != 10 {
		t.Fatalf("unexpected pool sizes: %+v", out)
	}
	if out.ConnMaxLifetime != 45*time.Minute || out.ConnMaxIdleTime != 10*time.Minute {
		t.Fatalf("unexpected connection ages: %+v", out)
	}
	if out.PingTimeout != 3*time.Second {
		t.Fatalf("unexpected ping timeout: %+v", out)
	}
}

func TestPostgresPoolConfig_ExplicitValuesKept(t *testing.T) {
	in := PostgresPoolConfig{MaxOpenConns: 3, PingTimeout: time.Second}
	out := in.withDefaults()
	if out.MaxOpenConns != 3 || out.PingTimeout != time.Second {
		t.Fatalf("explicit values overridden: %+v", out)
	}
}

package shared

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestLoadServiceConfig(t *testing.T) {
	t.Run("Requires MONGO_URI", func(t *testing.T) {
		t.Setenv("MONGO_URI", "")
		if _, err := LoadServiceConfig("seeder"); err == nil {
			t.Fatal("expected error when MONGO_URI is empty")
		}
	})

	t.Run("Requires JWT secret for api", func(t *testing.T) {
		t.Setenv("MONGO_URI", "mongodb://localhost:27017")
		t.Setenv("JWT_SECRET", "")
		if _, err := LoadServiceConfig("api"); err == nil {
			t.Fatal("expected error when JWT_SECRET is empty")
		}
	})

	t.Run("Defaults and overrides", func(t *testing.T) {
		t.Setenv("MONGO_URI", "mongodb://localhost:27017")
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("HTTP_PORT", "9090")
		t.Setenv("PRINCIPAL_CACHE_TTL", "2m")
		t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test ,")

		cfg, err := LoadServiceConfig("api")
		if err != nil {
			t.Fatalf("LoadServiceConfig: %v", err)
		}
		if cfg.HTTPPort != "9090" {
			t.Errorf("HTTPPort = %q, want 9090", cfg.HTTPPort)
		}
		if cfg.MongoDB.Database != "school" {
			t.Errorf("Database = %q, want school", cfg.MongoDB.Database)
		}
		if cfg.Redis.CacheTTL != 2*time.Minute {
			t.Errorf("CacheTTL = %v, want 2m", cfg.Redis.CacheTTL)
		}
		if cfg.IDAllocation != AllocationCounter {
			t.Errorf("IDAllocation = %q, want counter", cfg.IDAllocation)
		}
		if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "http://b.test" {
			t.Errorf("AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
		}
		if err := ValidateServiceConfig(cfg); err != nil {
			t.Errorf("ValidateServiceConfig: %v", err)
		}
	})

	t.Run("Rejects unknown allocation policy", func(t *testing.T) {
		t.Setenv("MONGO_URI", "mongodb://localhost:27017")
		t.Setenv("ID_ALLOCATION", "random")
		cfg, err := LoadServiceConfig("seeder")
		if err != nil {
			t.Fatalf("LoadServiceConfig: %v", err)
		}
		if err := ValidateServiceConfig(cfg); err == nil {
			t.Error("expected validation error for ID_ALLOCATION=random")
		}
	})
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"missing dependency", MissingDependencyf("class %s has no faculty", "c1"), codes.FailedPrecondition},
		{"duplicate key", fmt.Errorf("insert: %w", ErrDuplicateKey), codes.AlreadyExists},
		{"not found", ErrNotFound, codes.NotFound},
		{"status passthrough", status.Error(codes.PermissionDenied, "nope"), codes.PermissionDenied},
		{"unknown", errors.New("socket closed"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := status.Code(ToStatus(tt.err, "operation failed"))
			if got != tt.want {
				t.Errorf("code = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("batch error passthrough", func(t *testing.T) {
		batch := &BatchError{Message: "rejected", Issues: []Issue{{Row: 2, Kind: IssueRangeViolation}}}
		var got *BatchError
		if !errors.As(ToStatus(batch, "x"), &got) || len(got.Issues) != 1 {
			t.Errorf("expected the batch error back, got %v", got)
		}
	})
}

func TestTimesOverlap(t *testing.T) {
	tests := []struct {
		s1, e1, s2, e2 string
		want           bool
	}{
		{"08:00", "09:00", "08:30", "09:30", true},
		{"08:00", "09:00", "09:00", "10:00", false},
		{"10:00", "12:00", "10:30", "11:00", true},
		{"bad", "09:00", "08:00", "09:00", false},
	}

	for _, tt := range tests {
		if got := TimesOverlap(tt.s1, tt.e1, tt.s2, tt.e2); got != tt.want {
			t.Errorf("TimesOverlap(%s-%s, %s-%s) = %v, want %v", tt.s1, tt.e1, tt.s2, tt.e2, got, tt.want)
		}
	}
}

func TestParseDay(t *testing.T) {
	day, err := ParseDay("2025-03-14")
	if err != nil {
		t.Fatalf("ParseDay: %v", err)
	}
	if !day.Equal(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("day = %v", day)
	}

	day, err = ParseDay("2025-03-14T17:45:00+00:00")
	if err != nil {
		t.Fatalf("ParseDay RFC3339: %v", err)
	}
	if day.Hour() != 0 || day.Day() != 14 {
		t.Errorf("expected truncation to midnight, got %v", day)
	}

	if _, err := ParseDay("14/03/2025"); err == nil {
		t.Error("expected error for unsupported layout")
	}
}

package keygen_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limitd/limitd/internal/domain/service"
	"github.com/limitd/limitd/internal/infrastructure/keygen"
	"github.com/limitd/limitd/pkg/constants"
	"github.com/limitd/limitd/pkg/logger"
)

func newGenerator(t *testing.T) *keygen.CELGenerator {
	t.Helper()
	g, err := keygen.NewCELGenerator(
		constants.DefaultKeyGeneratorTimeout,
		constants.MaxKeyGeneratorLength,
		logger.NewNullLogger(),
	)
	require.NoError(t, err)
	return g
}

func TestValidate(t *testing.T) {
	g := newGenerator(t)

	t.Run("valid expressions", func(t *testing.T) {
		for _, expr := range []string{
			`applicationId`,
			`"tenant:" + applicationId`,
			`serviceId + ":" + procedureName`,
			`headers["x-tenant-id"]`,
			`applicationId != "" ? applicationId : ip`,
			`query["api_key"] + "@" + ip`,
		} {
			assert.NoError(t, g.Validate(expr), expr)
		}
	})

	t.Run("empty expression", func(t *testing.T) {
		assert.Error(t, g.Validate(""))
	})

	t.Run("expression too long", func(t *testing.T) {
		expr := `"` + strings.Repeat("x", constants.MaxKeyGeneratorLength) + `"`
		assert.Error(t, g.Validate(expr))
	})

	t.Run("nesting too deep", func(t *testing.T) {
		expr := strings.Repeat("(", 25) + "ip" + strings.Repeat(")", 25)
		err := g.Validate(expr)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nesting too deep")
	})

	t.Run("does not compile", func(t *testing.T) {
		assert.Error(t, g.Validate(`applicationId +`))
	})

	t.Run("unknown variable", func(t *testing.T) {
		assert.Error(t, g.Validate(`secretToken`))
	})

	t.Run("non-string output", func(t *testing.T) {
		err := g.Validate(`1 + 2`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "string")
	})
}

func TestGenerate(t *testing.T) {
	g := newGenerator(t)
	ctx := context.Background()

	req := &service.RequestContext{
		ApplicationID: "billing-app",
		RoleID:        "operator",
		ServiceID:     "orders",
		ProcedureName: "create",
		ClientIP:      "10.0.0.9",
		Method:        "POST",
		Path:          "/api/v1/orders",
		Headers:       map[string]string{"x-tenant-id": "acme"},
		Query:         map[string]string{"api_key": "k123"},
	}

	tests := []struct {
		expr string
		want string
	}{
		{`applicationId`, "billing-app"},
		{`"tenant:" + headers["x-tenant-id"]`, "tenant:acme"},
		{`serviceId + ":" + procedureName`, "orders:create"},
		{`roleId != "" ? "r:" + roleId : "ip:" + ip`, "r:operator"},
		{`method + " " + path`, "POST /api/v1/orders"},
		{`query["api_key"]`, "k123"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			key, err := g.Generate(ctx, tt.expr, req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, key)
		})
	}
}

func TestGenerate_Errors(t *testing.T) {
	g := newGenerator(t)
	ctx := context.Background()

	t.Run("missing map key", func(t *testing.T) {
		_, err := g.Generate(ctx, `headers["absent"]`, &service.RequestContext{ClientIP: "1.1.1.1"})
		assert.Error(t, err)
	})

	t.Run("nil header map evaluates as empty", func(t *testing.T) {
		key, err := g.Generate(ctx, `"absent" in headers ? headers["absent"] : "none"`,
			&service.RequestContext{ClientIP: "1.1.1.1"})
		require.NoError(t, err)
		assert.Equal(t, "none", key)
	})

	t.Run("broken expression", func(t *testing.T) {
		_, err := g.Generate(ctx, `applicationId +`, &service.RequestContext{})
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := g.Generate(cancelled, `applicationId`, &service.RequestContext{ApplicationID: "a"})
		// A trivially cheap program may complete before the interrupt check
		// fires; either outcome is acceptable, it must just not hang.
		_ = err
	})
}

func TestGenerate_CachesPrograms(t *testing.T) {
	g := newGenerator(t)
	ctx := context.Background()
	req := &service.RequestContext{ApplicationID: "a"}

	start := time.Now()
	for i := 0; i < 100; i++ {
		_, err := g.Generate(ctx, `"app:" + applicationId`, req)
		require.NoError(t, err)
	}
	assert.Less(t, time.Since(start), 2*time.Second)
}

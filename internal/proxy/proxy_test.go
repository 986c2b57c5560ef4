package proxy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyupulker/showrun/internal/types"
)

func TestResolve_Disabled_ReturnsZeroValue(t *testing.T) {
	r := NewRegistry()
	d, err := r.Resolve(types.ProxyConfig{Enabled: false})
	require.NoError(t, err)
	assert.Equal(t, DialInfo{}, d)
	assert.Equal(t, "", d.Addr())
}

func TestResolve_UnknownProvider(t *testing.T) {
	t.Setenv(ProviderEnv, "not-registered")
	r := NewRegistry()
	_, err := r.Resolve(types.ProxyConfig{Enabled: true})
	require.Error(t, err)
}

func TestResolve_OxylabsDefault_RandomMode(t *testing.T) {
	t.Setenv(UsernameEnv, "acct1")
	t.Setenv(PasswordEnv, "secretpw")
	r := NewRegistry()
	d, err := r.Resolve(types.ProxyConfig{Enabled: true, Country: "us"})
	require.NoError(t, err)
	assert.Equal(t, oxylabsEndpoint, d.Endpoint)
	assert.Equal(t, "customer-acct1-cc-US", d.Username)
	assert.Equal(t, "secretpw", d.Password)
	assert.NotContains(t, d.Username, "sessid")
}

func TestResolve_OxylabsSessionMode_AddsStickySessionID(t *testing.T) {
	t.Setenv(UsernameEnv, "acct1")
	t.Setenv(PasswordEnv, "secretpw")
	r := NewRegistry()
	d, err := r.Resolve(types.ProxyConfig{Enabled: true, Mode: "session"})
	require.NoError(t, err)
	assert.Contains(t, d.Username, "-sessid-")
	assert.Contains(t, d.Username, "-sesstime-10")
}

func TestRegisterProvider_Overrides(t *testing.T) {
	r := NewRegistry()
	r.RegisterProvider("custom", fakeProvider{dial: DialInfo{Endpoint: "http://proxy.test:8080", Username: "u", Password: "p"}})
	t.Setenv(ProviderEnv, "custom")
	d, err := r.Resolve(types.ProxyConfig{Enabled: true})
	require.NoError(t, err)
	assert.Equal(t, "proxy.test:8080", d.Endpoint[strings.Index(d.Endpoint, "://")+3:])
	assert.Equal(t, "u:p@proxy.test:8080", d.Addr())
}

func TestDialInfo_Addr_NoCredentials(t *testing.T) {
	d := DialInfo{Endpoint: "http://plainproxy.test:3128"}
	assert.Equal(t, "plainproxy.test:3128", d.Addr())
}

type fakeProvider struct{ dial DialInfo }

func (f fakeProvider) Resolve(types.ProxyConfig) (DialInfo, error) { return f.dial, nil }

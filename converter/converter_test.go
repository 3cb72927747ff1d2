package converter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string   `yaml:"name" json:"name" toml:"name"`
	Port  int      `yaml:"port" json:"port" toml:"port"`
	Tags  []string `yaml:"tags" json:"tags" toml:"tags"`
	Debug bool     `yaml:"debug" json:"debug" toml:"debug"`
}

func TestRoundTrip(t *testing.T) {
	in := sample{Name: "edge", Port: 8080, Tags: []string{"a", "b"}, Debug: true}
	tests := []struct {
		name string
		conv Converter[sample]
	}{
		{"yaml", YAML[sample]{}},
		{"json", JSON[sample]{}},
		{"toml", TOML[sample]{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := tc.conv.Serialize(in)
			require.NoError(t, err)
			out, err := tc.conv.Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestParseMapNumbers(t *testing.T) {
	y, err := YAML[map[string]any]{}.Parse([]byte("n: 3\nf: 1.5\ns: x\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, y["n"])
	assert.Equal(t, 1.5, y["f"])

	j, err := JSON[map[string]any]{}.Parse([]byte(`{"n": 3}`))
	require.NoError(t, err)
	assert.Equal(t, float64(3), j["n"])

	tm, err := TOML[map[string]any]{}.Parse([]byte("n = 3\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), tm["n"])
}

func TestParseErrors(t *testing.T) {
	_, err := YAML[map[string]any]{}.Parse([]byte("a: [unclosed"))
	assert.Error(t, err)
	_, err = JSON[map[string]any]{}.Parse([]byte("{"))
	assert.Error(t, err)
	_, err = TOML[map[string]any]{}.Parse([]byte("= broken"))
	assert.Error(t, err)
}

func TestMapByExtension(t *testing.T) {
	for name, want := range map[string]any{
		"a.yml":      YAML[map[string]any]{},
		"dir/b.YAML": YAML[map[string]any]{},
		"c.json":     JSON[map[string]any]{},
		"d.toml":     TOML[map[string]any]{},
	} {
		got, err := Map(name)
		require.NoError(t, err, name)
		assert.IsType(t, want, got, name)
	}
	_, err := Map("e.ini")
	assert.Error(t, err)
}

func TestFuncIsReadOnly(t *testing.T) {
	f := Func[string](func(raw []byte) (string, error) { return string(raw), nil })
	v, err := f.Parse([]byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, "hi", v)
	_, err = f.Serialize("hi")
	assert.True(t, errors.Is(err, ErrNotSupported))
}

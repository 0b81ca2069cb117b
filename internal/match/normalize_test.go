package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEquivalentSpellings(t *testing.T) {
	// The same physical forest written three ways must share one key.
	assert.Equal(t, Normalize("Chichester State Forest"), Normalize("CHICHESTER (state forest)"))
	assert.Equal(t, Normalize("Chichester State Forest"), Normalize("  chichester  "))
	// A fire-ban spelling with stacked designations and the bare directory
	// spelling reduce to the same key.
	assert.Equal(t, Normalize("Olney"), Normalize("Olney State Forest Flora Reserve"))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Olney State Forest", "olney"},
		{"Olney State Forest Flora Reserve", "olney"},
		{"Strickland State Forest Nature Reserve", "strickland"},
		{"Bago & Maragle State Forests", "bago and maragle state forests"},
		{"Mount Royal (camping area)", "mount royal"},
		{"D'Aguilar National Park", "daguilar"},
		{"Barrington Tops Forest Park", "barrington tops"},
		{"Bondi   Flora Reserve", "bondi"},
		{"Yambulla-South", "yambulla south"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestNormalizeFoldsAccents(t *testing.T) {
	assert.Equal(t, "seora", Normalize("Séora"))
}

func TestNormalizeIdempotent(t *testing.T) {
	names := []string{
		"Chichester State Forest",
		"Bago (East) State Forest",
		"Séora Nature Reserve",
		"Mount Royal / North",
		// Stacked designations must strip to a fixed point in one call.
		"Olney State Forest Flora Reserve",
		"Barrington Tops Forest Park Nature Reserve",
	}
	for _, name := range names {
		once := Normalize(name)
		assert.Equal(t, once, Normalize(once), "Normalize not idempotent for %q", name)
	}
}

func TestDirectionConflict(t *testing.T) {
	assert.True(t, DirectionConflict("Bago East State Forest", "Bago West State Forest"))
	assert.True(t, DirectionConflict("North Brook", "South Brook"))
	assert.False(t, DirectionConflict("Bago East State Forest", "Bago East"))
	assert.False(t, DirectionConflict("Olney", "Watagan"))
	// Only literal compass tokens trigger the guard.
	assert.False(t, DirectionConflict("Upper Bago", "Lower Bago"))
	// "Eastwood" contains "east" as a substring but not as a token.
	assert.False(t, DirectionConflict("Eastwood", "Westwood"))
}

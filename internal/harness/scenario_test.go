package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScenario = `
name: minimal
description: one create
steps:
  - op: create
    caller: alice
    fingerprint: "0x01"
    expect: Ok
assertions:
  - type: claim_count
    count: 1
`

func TestParseScenario_Valid(t *testing.T) {
	s, err := ParseScenario([]byte(validScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, "create", s.Steps[0].Op)
	assert.Equal(t, "Ok", s.Steps[0].Expect)
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, AssertClaimCount, s.Assertions[0].Type)
}

func TestLoadScenario_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validScenario), 0o600))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_AllTestdata(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, p := range paths {
		_, err := LoadScenario(p)
		assert.NoError(t, err, p)
	}
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: "name: x\ndescription: d\nstep: []\n",
			want: "failed to parse YAML",
		},
		{
			name: "missing name",
			yaml: "description: d\nsteps: [{op: advance}]\nassertions: [{type: claim_count}]\n",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: x\nsteps: [{op: advance}]\nassertions: [{type: claim_count}]\n",
			want: "description is required",
		},
		{
			name: "no steps",
			yaml: "name: x\ndescription: d\nassertions: [{type: claim_count}]\n",
			want: "steps list is required",
		},
		{
			name: "no assertions",
			yaml: "name: x\ndescription: d\nsteps: [{op: advance}]\n",
			want: "assertions list is required",
		},
		{
			name: "unknown op",
			yaml: "name: x\ndescription: d\nsteps: [{op: mint, caller: a, fingerprint: '0x01'}]\nassertions: [{type: claim_count}]\n",
			want: `unknown op "mint"`,
		},
		{
			name: "missing caller",
			yaml: "name: x\ndescription: d\nsteps: [{op: create, fingerprint: '0x01'}]\nassertions: [{type: claim_count}]\n",
			want: "caller is required",
		},
		{
			name: "transfer without receiver",
			yaml: "name: x\ndescription: d\nsteps: [{op: transfer, caller: a, fingerprint: '0x01'}]\nassertions: [{type: claim_count}]\n",
			want: "receiver is required",
		},
		{
			name: "missing fingerprint",
			yaml: "name: x\ndescription: d\nsteps: [{op: create, caller: a}]\nassertions: [{type: claim_count}]\n",
			want: "fingerprint or text is required",
		},
		{
			name: "fingerprint and text",
			yaml: "name: x\ndescription: d\nsteps: [{op: create, caller: a, fingerprint: '0x01', text: hi}]\nassertions: [{type: claim_count}]\n",
			want: "mutually exclusive",
		},
		{
			name: "bad hex",
			yaml: "name: x\ndescription: d\nsteps: [{op: create, caller: a, fingerprint: '01'}]\nassertions: [{type: claim_count}]\n",
			want: "invalid fingerprint",
		},
		{
			name: "unknown algorithm",
			yaml: "name: x\ndescription: d\nsteps: [{op: create, caller: a, text: hi, algorithm: md5}]\nassertions: [{type: claim_count}]\n",
			want: "unknown digest algorithm",
		},
		{
			name: "advance with arguments",
			yaml: "name: x\ndescription: d\nsteps: [{op: advance, caller: a}]\nassertions: [{type: claim_count}]\n",
			want: "advance takes no arguments",
		},
		{
			name: "claim without owner",
			yaml: "name: x\ndescription: d\nsteps: [{op: advance}]\nassertions: [{type: claim, fingerprint: '0x01'}]\n",
			want: "owner is required",
		},
		{
			name: "event_order without kinds",
			yaml: "name: x\ndescription: d\nsteps: [{op: advance}]\nassertions: [{type: event_order}]\n",
			want: "kinds list is required",
		},
		{
			name: "outcome_count without outcome",
			yaml: "name: x\ndescription: d\nsteps: [{op: advance}]\nassertions: [{type: outcome_count, count: 1}]\n",
			want: "outcome is required",
		},
		{
			name: "unknown assertion",
			yaml: "name: x\ndescription: d\nsteps: [{op: advance}]\nassertions: [{type: final_state}]\n",
			want: `unknown assertion type "final_state"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestResolveFingerprint(t *testing.T) {
	fp, err := resolveFingerprint("0x", "", "")
	require.NoError(t, err)
	assert.Empty(t, fp)

	fp, err = resolveFingerprint("", "hello world", "")
	require.NoError(t, err)
	assert.Len(t, fp, 32)

	_, err = resolveFingerprint("0x01", "", "sha2-256")
	assert.Error(t, err, "algorithm without text")
}

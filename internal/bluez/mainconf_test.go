package bluez

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/viamrobotics/btdoctor/utils"
	"go.viam.com/test"
)

func TestAutoEnable(t *testing.T) {
	tests := []struct {
		name    string
		content string
		value   string
		found   bool
	}{
		{
			name:    "enabled",
			content: "[General]\nName = pi\n\n[Policy]\n#ReconnectAttempts=7\nAutoEnable=true\n",
			value:   "true",
			found:   true,
		},
		{
			name:    "disabled with spaces",
			content: "[Policy]\nAutoEnable = False\n",
			value:   "false",
			found:   true,
		},
		{
			name:    "commented out",
			content: "[Policy]\n#AutoEnable=true\n",
		},
		{
			name:    "wrong section",
			content: "[General]\nAutoEnable=true\n[Policy]\n",
		},
		{
			name:    "commented section header doesn't leave policy",
			content: "[Policy]\n#[LE]\nAutoEnable=true\n",
			value:   "true",
			found:   true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			value, found := AutoEnable(tc.content)
			test.That(t, value, test.ShouldEqual, tc.value)
			test.That(t, found, test.ShouldEqual, tc.found)
		})
	}
}

func TestFileProbe(t *testing.T) {
	td := t.TempDir()
	path := filepath.Join(td, "main.conf")
	test.That(t, os.WriteFile(path, []byte("[Policy]\nAutoEnable=true\n"), 0o600), test.ShouldBeNil)

	out, err := FileProbe{Path: path}.Inspect(t.Context(), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "AutoEnable")

	_, err = FileProbe{Path: filepath.Join(td, "missing.conf")}.Inspect(t.Context(), nil)
	test.That(t, utils.Classify(err), test.ShouldEqual, utils.OutcomeUnavailable)
}

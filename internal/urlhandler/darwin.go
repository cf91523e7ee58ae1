package urlhandler

import (
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"text/template"

	apperrors "github.com/naotama2002/switchbot-key/internal/errors"
	"github.com/naotama2002/switchbot-key/internal/relay"
)

const (
	defaultBundleDir = "/Applications"
	bundleExecutable = "relay"
	bundleIDPrefix   = "com.github.naotama2002.switchbot-key."
	lsregister       = "/System/Library/Frameworks/CoreServices.framework/Frameworks/LaunchServices.framework/Support/lsregister"
)

var infoPlist = template.Must(template.New("Info.plist").Funcs(template.FuncMap{"xml": xmlEscape}).Parse(
	`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>CFBundleExecutable</key>
	<string>{{xml .Executable}}</string>
	<key>CFBundleIdentifier</key>
	<string>{{xml .Identifier}}</string>
	<key>CFBundleName</key>
	<string>{{xml .Name}}</string>
	<key>CFBundlePackageType</key>
	<string>APPL</string>
	<key>CFBundleShortVersionString</key>
	<string>1.0</string>
	<key>CFBundleVersion</key>
	<string>1</string>
	<key>NSPrincipalClass</key>
	<string>NSApplication</string>
	<key>LSUIElement</key>
	<true/>
	<key>CFBundleURLTypes</key>
	<array>
		<dict>
			<key>CFBundleURLName</key>
			<string>{{xml .Name}}</string>
			<key>CFBundleURLSchemes</key>
			<array>
				<string>{{xml .Scheme}}</string>
			</array>
		</dict>
	</array>
</dict>
</plist>
`))

type plistData struct {
	Executable string
	Identifier string
	Name       string
	Scheme     string
}

func xmlEscape(s string) (string, error) {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// InfoPlist renders the bundle property list declaring scheme.
func InfoPlist(scheme string) ([]byte, error) {
	var buf bytes.Buffer
	err := infoPlist.Execute(&buf, plistData{
		Executable: bundleExecutable,
		Identifier: bundleIDPrefix + scheme,
		Name:       handlerName(scheme),
		Scheme:     scheme,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type darwinRegistrar struct {
	dir string
	run Runner
}

func newDarwinRegistrar(opts Options) *darwinRegistrar {
	dir := opts.BundleDir
	if dir == "" {
		dir = defaultBundleDir
	}
	return &darwinRegistrar{dir: dir, run: opts.Runner}
}

func (r *darwinRegistrar) Handle(scheme string) *Handle {
	return &Handle{
		Platform: "darwin",
		Scheme:   scheme,
		Path:     filepath.Join(r.dir, handlerName(scheme)+".app"),
	}
}

func (r *darwinRegistrar) Register(scheme string, cmd relay.Command) (*Handle, error) {
	if err := ValidateScheme(scheme); err != nil {
		return nil, err
	}
	h := r.Handle(scheme)

	// A bundle left by an interrupted run is replaced, not merged.
	if err := os.RemoveAll(h.Path); err != nil {
		return nil, apperrors.NewRegistrationError(err, "failed to remove stale bundle")
	}
	if err := r.writeBundle(h.Path, scheme, cmd); err != nil {
		_ = os.RemoveAll(h.Path)
		return nil, apperrors.NewRegistrationError(err, "failed to create handler bundle")
	}

	refresh(r.run, lsregister, "-f", h.Path)
	return h, nil
}

func (r *darwinRegistrar) writeBundle(path, scheme string, cmd relay.Command) error {
	macOS := filepath.Join(path, "Contents", "MacOS")
	if err := os.MkdirAll(macOS, 0755); err != nil {
		return err
	}

	plist, err := InfoPlist(scheme)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(path, "Contents", "Info.plist"), plist, 0644); err != nil {
		return err
	}

	stub := filepath.Join(macOS, bundleExecutable)
	if err := os.WriteFile(stub, []byte(cmd.ShellScript()), 0755); err != nil {
		return err
	}
	// WriteFile honours the umask; the stub must stay executable.
	return os.Chmod(stub, 0755)
}

func (r *darwinRegistrar) Cleanup(h *Handle) error {
	if h == nil {
		return nil
	}
	exists, err := pathExists(h.Path)
	if err != nil {
		return apperrors.NewRegistrationError(err, "failed to inspect handler bundle")
	}
	if !exists {
		return nil
	}

	refresh(r.run, lsregister, "-u", h.Path)
	if err := os.RemoveAll(h.Path); err != nil {
		return apperrors.NewRegistrationError(err, "failed to remove handler bundle")
	}
	return nil
}

func (r *darwinRegistrar) Installed(scheme string) (bool, error) {
	return pathExists(r.Handle(scheme).Path)
}

package sysinfo

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// TestVendorMarker is the firmware vendor prefix that marks a
// disposable CI test system.
const TestVendorMarker = "GitHub Actions Test"

// TestEnv force-enables test mode when set to 1, for CI runs that
// cannot control the firmware vendor string.
const TestEnv = "BOOTSUM_TEST"

const efiGlobalGUID = "8be4df61-93ca-11d2-aa0d-00e098032b8c"

// SecureBootState mirrors the platform's SecureBoot/SetupMode
// variable pair.
type SecureBootState int

const (
	SecureBootUnsupported SecureBootState = iota
	SecureBootDisabled
	SecureBootEnabled
	SecureBootSetup
)

func (s SecureBootState) String() string {
	switch s {
	case SecureBootDisabled:
		return "Disabled"
	case SecureBootEnabled:
		return "Enabled"
	case SecureBootSetup:
		return "Setup"
	default:
		return "Unsupported"
	}
}

// Info reads firmware facts from sysfs. The directories are public so
// tests can point them at fixtures.
type Info struct {
	EfiVarsDir string
	DMIDir     string
}

func New() *Info {
	return &Info{
		EfiVarsDir: "/sys/firmware/efi/efivars",
		DMIDir:     "/sys/class/dmi/id",
	}
}

// efiVar returns the first data byte of a global EFI variable, or -1
// when the variable cannot be read. efivarfs prefixes the payload
// with four attribute bytes.
func (n *Info) efiVar(name string) int {
	data, err := os.ReadFile(
		filepath.Join(n.EfiVarsDir, name+"-"+efiGlobalGUID),
	)
	if err != nil || len(data) < 5 {
		return -1
	}
	return int(data[4])
}

func (n *Info) SecureBoot() SecureBootState {
	sb := n.efiVar("SecureBoot")
	sm := n.efiVar("SetupMode")
	switch {
	case sm == 1:
		return SecureBootSetup
	case sb == 1:
		return SecureBootEnabled
	case sb == 0:
		return SecureBootDisabled
	default:
		return SecureBootUnsupported
	}
}

func (n *Info) dmi(name string) string {
	data, err := os.ReadFile(filepath.Join(n.DMIDir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (n *Info) BIOSVendor() string {
	return n.dmi("bios_vendor")
}

func (n *Info) SysVendor() string {
	return n.dmi("sys_vendor")
}

func (n *Info) ProductName() string {
	return n.dmi("product_name")
}

// IsTestSystem reports whether this is a disposable test system.
// Test mode changes onscreen output and the exit path, never the
// verification itself.
func (n *Info) IsTestSystem() bool {
	if os.Getenv(TestEnv) == "1" {
		return true
	}
	return strings.HasPrefix(n.BIOSVendor(), TestVendorMarker)
}

// Arch returns the EFI short name for the running architecture, as
// used in boot loader file names.
func Arch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x64"
	case "386":
		return "ia32"
	case "arm64":
		return "aa64"
	case "arm":
		return "arm"
	case "riscv64":
		return "riscv64"
	default:
		return runtime.GOARCH
	}
}

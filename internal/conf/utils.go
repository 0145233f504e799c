// conf/utils.go various util functions for configuration package
package conf

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/mousetube/mousetube-go/internal/errors"
)

// OS name constants for runtime.GOOS comparisons.
const (
	osLinux   = "linux"
	osWindows = "windows"
)

// GetDefaultConfigPaths returns a list of default configuration paths for the
// current operating system. If a config.yaml file is found in any of the paths,
// that path is returned as the only default.
func GetDefaultConfigPaths() ([]string, error) {
	var configPaths []string

	exePath, err := os.Executable()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get-executable-path").
			Build()
	}
	exeDir := filepath.Dir(exePath)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	switch runtime.GOOS {
	case osWindows:
		configPaths = []string{
			exeDir,
			filepath.Join(homeDir, "AppData", "Roaming", "mousetube-go"),
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", "mousetube-go"),
			"/etc/mousetube-go",
		}
	}

	for _, path := range configPaths {
		configFile := filepath.Join(path, "config.yaml")
		if _, err := os.Stat(configFile); err == nil {
			return []string{path}, nil
		}
	}

	return configPaths, nil
}

// FindConfigFile locates the configuration file.
func FindConfigFile() (string, error) {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "find-config-paths").
			Build()
	}

	for _, path := range configPaths {
		configFilePath := filepath.Join(path, "config.yaml")
		if _, err := os.Stat(configFilePath); err == nil {
			return configFilePath, nil
		}
	}

	return "", errors.Newf("config file not found").
		Category(errors.CategoryFileIO).
		Context("operation", "find-config-file").
		Build()
}

// GetBasePath expands environment variables in the given path and ensures the
// resulting directory exists.
func GetBasePath(path string) string {
	expandedPath := os.ExpandEnv(path)
	basePath := filepath.Clean(expandedPath)

	if _, err := os.Stat(basePath); os.IsNotExist(err) {
		if err := os.MkdirAll(basePath, 0o750); err != nil {
			slog.Warn("Failed to create directory", "path", basePath, "error", err)
		}
	}

	return basePath
}

// RunningInContainer checks if the program is running inside a container.
func RunningInContainer() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	if _, err := os.Stat("/run/.containerenv"); err == nil {
		return true
	}

	if containerEnv, exists := os.LookupEnv("container"); exists && containerEnv != "" {
		return true
	}

	file, err := os.Open("/proc/self/cgroup")
	if err != nil {
		return false
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("Failed to close /proc/self/cgroup", "error", err)
		}
	}()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "docker") || strings.Contains(line, "podman") {
			return true
		}
	}

	return false
}

// ParseRetentionPeriod converts a string like "24h", "7d", "1w", "3m", "1y" to hours.
func ParseRetentionPeriod(retention string) (int, error) {
	if retention == "" {
		return 0, fmt.Errorf("retention period cannot be empty")
	}

	lastChar := retention[len(retention)-1]
	numberPart := retention[:len(retention)-1]

	// Plain integers are taken as hours
	if lastChar >= '0' && lastChar <= '9' {
		hours, err := strconv.Atoi(retention)
		if err != nil {
			return 0, fmt.Errorf("invalid retention period format: %s", retention)
		}
		return hours, nil
	}

	number, err := strconv.Atoi(numberPart)
	if err != nil {
		return 0, fmt.Errorf("invalid retention period format: %s", retention)
	}

	switch lastChar {
	case 'h':
		return number, nil
	case 'd':
		return number * 24, nil
	case 'w':
		return number * 24 * 7, nil
	case 'm':
		return number * 24 * 30, nil // months approximated as 30 days
	case 'y':
		return number * 24 * 365, nil // leap years ignored
	default:
		return 0, fmt.Errorf("invalid suffix for retention period: %c", lastChar)
	}
}

// GetFfmpegBinaryName returns the binary name for ffmpeg based on the current OS.
func GetFfmpegBinaryName() string {
	if runtime.GOOS == osWindows {
		return "ffmpeg.exe"
	}
	return "ffmpeg"
}

// GetSoxBinaryName returns the binary name for sox based on the current OS.
func GetSoxBinaryName() string {
	if runtime.GOOS == osWindows {
		return "sox.exe"
	}
	return "sox"
}

// IsFfmpegAvailable checks if ffmpeg is available in the system PATH.
func IsFfmpegAvailable() bool {
	_, err := exec.LookPath(GetFfmpegBinaryName())
	return err == nil
}

// IsSoxAvailable checks if SoX is available in the system PATH and returns its
// supported audio formats.
func IsSoxAvailable() (isAvailable bool, formats []string) {
	soxPath, err := exec.LookPath(GetSoxBinaryName())
	if err != nil {
		return false, nil
	}

	cmd := exec.Command(soxPath, "-h") //nolint:gosec // G204: soxPath resolved via exec.LookPath()
	output, err := cmd.CombinedOutput()
	if err != nil {
		return false, nil
	}

	lines := strings.Split(string(output), "\n")

	var audioFormats []string
	for _, line := range lines {
		if formats, found := strings.CutPrefix(line, "AUDIO FILE FORMATS:"); found {
			formats = strings.TrimSpace(formats)
			audioFormats = strings.Fields(formats)
			break
		}
	}

	return true, audioFormats
}

// ValidateToolPath checks if a tool is available, either at an explicit path or
// in the system PATH. It returns the validated path to the tool if found.
func ValidateToolPath(configuredPath, toolName string) (string, error) {
	if configuredPath != "" {
		if info, err := os.Stat(configuredPath); err == nil && !info.IsDir() {
			return configuredPath, nil
		}
		slog.Warn("Configured tool path invalid or not found, checking system PATH",
			"configured_path", configuredPath, "tool", toolName)
	}

	pathFromLookPath, err := exec.LookPath(toolName)
	if err == nil {
		return pathFromLookPath, nil
	}

	if configuredPath != "" {
		return "", fmt.Errorf("tool '%s' not found at configured path '%s' or in system PATH", toolName, configuredPath)
	}
	return "", fmt.Errorf("tool '%s' not found in system PATH and no path configured", toolName)
}

// moveFile moves a file from src to dst, working across devices
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	srcAbs, err := filepath.Abs(src)
	if err != nil {
		return fmt.Errorf("error resolving source path: %w", err)
	}
	dstAbs, err := filepath.Abs(dst)
	if err != nil {
		return fmt.Errorf("error resolving destination path: %w", err)
	}

	srcFile, err := os.Open(srcAbs) //nolint:gosec // G304: srcAbs is filepath.Abs resolved path
	if err != nil {
		return fmt.Errorf("error opening source file: %w", err)
	}
	defer func() {
		if err := srcFile.Close(); err != nil {
			slog.Warn("Failed to close source file", "error", err)
		}
	}()

	dstFile, err := os.Create(dstAbs) //nolint:gosec // G304: dstAbs is filepath.Abs resolved path
	if err != nil {
		return fmt.Errorf("error creating destination file: %w", err)
	}
	defer func() {
		if err := dstFile.Close(); err != nil {
			slog.Warn("Failed to close destination file", "error", err)
		}
	}()

	if _, err = io.Copy(dstFile, srcFile); err != nil {
		return fmt.Errorf("error copying file contents: %w", err)
	}

	if err := os.Remove(src); err != nil {
		return fmt.Errorf("error removing source file after copy: %w", err)
	}

	return nil
}

// GetHostIP returns the host IP address, resolving host.docker.internal if
// running in a container.
func GetHostIP() (net.IP, error) {
	if RunningInContainer() {
		if ip := resolveDockerHost(); ip != nil {
			return ip, nil
		}

		if ip := resolveGatewayFromRoute(); ip != nil {
			return ip, nil
		}
	}

	return getLocalInterfaceIP()
}

// resolveDockerHost attempts to resolve host.docker.internal or host-gateway
func resolveDockerHost() net.IP {
	if ip := lookupHostname("host.docker.internal"); ip != nil {
		return ip
	}
	return lookupHostname("host-gateway")
}

// lookupHostname tries to resolve a hostname to a usable IPv4 address
func lookupHostname(hostname string) net.IP {
	ips, err := net.LookupIP(hostname)
	if err == nil && len(ips) > 0 {
		for _, ip := range ips {
			if ip.To4() != nil && !ip.IsLoopback() {
				return ip
			}
		}
	}
	return nil
}

// resolveGatewayFromRoute tries to find the default gateway from /proc/net/route
func resolveGatewayFromRoute() net.IP {
	file, err := os.Open("/proc/net/route")
	if err != nil {
		return nil
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("Failed to close /proc/net/route", "error", err)
		}
	}()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		// Default route has destination 0.0.0.0
		if len(fields) >= 3 && fields[1] == "00000000" {
			return parseGatewayHex(fields[2])
		}
	}
	return nil
}

// parseGatewayHex converts a hex gateway address to net.IP
func parseGatewayHex(gatewayHex string) net.IP {
	if len(gatewayHex) != 8 {
		return nil
	}

	ip := make([]byte, 4)
	for i := range 4 {
		b, err := strconv.ParseUint(gatewayHex[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil
		}
		ip[3-i] = byte(b)
	}
	return ip
}

// getLocalInterfaceIP returns the first non-loopback IPv4 address
func getLocalInterfaceIP() (net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("failed to get interface addresses: %w", err)
	}

	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipv4 := ipnet.IP.To4(); ipv4 != nil {
				return ipv4, nil
			}
		}
	}

	return nil, fmt.Errorf("no suitable IP address found")
}

// IsInHostSubnet checks if the given IP is in the same subnet as the host
func IsInHostSubnet(clientIP net.IP) bool {
	if clientIP == nil {
		return false
	}

	hostIP, err := GetHostIP()
	if err != nil {
		slog.Warn("Error getting host IP", "error", err)
		return false
	}

	clientSubnet := getIPv4Subnet(clientIP, 24)
	if clientSubnet == nil {
		return false
	}

	hostSubnet := getIPv4Subnet(hostIP, 24)
	if hostSubnet == nil {
		return false
	}

	return clientSubnet.Equal(hostSubnet)
}

// getIPv4Subnet converts an IP address to its subnet address with specified mask bits
func getIPv4Subnet(ip net.IP, bits int) net.IP {
	if ip == nil {
		return nil
	}

	ipv4 := ip.To4()
	if ipv4 == nil {
		return nil
	}

	return ipv4.Mask(net.CIDRMask(bits, 32))
}

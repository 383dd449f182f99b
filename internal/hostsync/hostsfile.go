package hostsync

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/saltyorg/sdc/internal/docker"
)

const (
	beginMarker = "# BEGIN DOCKER CONTAINERS"
	endMarker   = "# END DOCKER CONTAINERS"
)

// renderManagedSection builds the lines that belong between the markers,
// one line per container, sorted by IP for a stable diff. Each alias gets
// both its bare form and a network-suffixed form, matching the original
// updater's "alias alias.suffix" convention.
func renderManagedSection(views []docker.ContainerView, network, suffix string) []string {
	type entry struct {
		ip   string
		line string
	}

	var entries []entry
	for _, v := range views {
		for _, att := range v.Networks {
			if att.Network != network || att.IP == "" || len(att.Aliases) == 0 {
				continue
			}

			aliases := make([]string, len(att.Aliases))
			copy(aliases, att.Aliases)
			sort.Strings(aliases)

			names := make([]string, 0, len(aliases)*2)
			seen := make(map[string]bool)
			for _, alias := range aliases {
				if alias == "" {
					continue
				}
				if !seen[alias] {
					seen[alias] = true
					names = append(names, alias)
				}
				withSuffix := alias + "." + suffix
				if !seen[withSuffix] {
					seen[withSuffix] = true
					names = append(names, withSuffix)
				}
			}
			if len(names) == 0 {
				continue
			}

			entries = append(entries, entry{
				ip:   att.IP,
				line: att.IP + " " + strings.Join(names, " "),
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ip < entries[j].ip })

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.line)
	}
	return lines
}

// spliceManagedSection replaces the content between the begin/end markers
// in content with managedLines, appending the markers if neither is
// present. It mirrors the original updater's sed-based splice but as
// explicit string surgery.
func spliceManagedSection(content string, managedLines []string) (string, error) {
	beginIdx := strings.Index(content, beginMarker)
	endIdx := strings.Index(content, endMarker)

	section := beginMarker + "\n" + strings.Join(managedLines, "\n")
	if len(managedLines) > 0 {
		section += "\n"
	}
	section += endMarker

	switch {
	case beginIdx == -1 && endIdx == -1:
		if !strings.HasSuffix(content, "\n") && content != "" {
			content += "\n"
		}
		return content + "\n" + section + "\n", nil

	case beginIdx == -1 || endIdx == -1:
		return "", fmt.Errorf("hosts file has only one of the managed-region markers")

	case beginIdx > endIdx:
		return "", fmt.Errorf("hosts file has the END marker before the BEGIN marker")

	default:
		endOfEnd := endIdx + len(endMarker)
		return content[:beginIdx] + section + content[endOfEnd:], nil
	}
}

// validateHostsContent applies the same sanity checks as the original
// updater before a generated file is allowed to replace the live one: not
// empty, still carries a localhost entry, and the markers (if present) are
// paired and correctly ordered. An empty managed section is valid — it
// means no containers are currently attached to the network.
func validateHostsContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("generated hosts file is empty")
	}
	if !strings.Contains(content, "127.0.0.1") && !strings.Contains(content, "::1") {
		return fmt.Errorf("generated hosts file is missing a localhost entry")
	}

	beginIdx := strings.Index(content, beginMarker)
	endIdx := strings.Index(content, endMarker)
	if (beginIdx == -1) != (endIdx == -1) {
		return fmt.Errorf("generated hosts file has an unpaired managed-region marker")
	}
	if beginIdx != -1 && beginIdx > endIdx {
		return fmt.Errorf("generated hosts file has the END marker before the BEGIN marker")
	}
	return nil
}

// writeAtomic writes content to path via a temp file in the same directory
// followed by a rename, so a concurrent reader never observes a partially
// written hosts file.
func writeAtomic(path string, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "hosts_*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file into place: %w", err)
	}
	return nil
}

// backupPath returns the path this package backs up path to before each
// update, mirroring the original updater's fixed `/etc/hosts.backup`
// convention but relative to whatever hosts file path is configured.
func backupPath(path string) string {
	return path + ".backup"
}

// createBackup copies the current hosts file to its backup path. A missing
// source file is not an error: there is nothing yet worth backing up.
func createBackup(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read hosts file for backup: %w", err)
	}
	if err := os.WriteFile(backupPath(path), data, 0o644); err != nil {
		return fmt.Errorf("failed to write hosts file backup: %w", err)
	}
	return nil
}

// restoreBackup copies the backup file back over path. It reports whether a
// backup existed to restore from.
func restoreBackup(path string) (bool, error) {
	data, err := os.ReadFile(backupPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read hosts file backup: %w", err)
	}
	if err := writeAtomic(path, string(data)); err != nil {
		return false, fmt.Errorf("failed to restore hosts file from backup: %w", err)
	}
	return true, nil
}

// readOrRestoreHostsFile reads path, restoring it from its backup first if
// it is missing or empty, per the original updater's crash-recovery path.
func readOrRestoreHostsFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil && len(strings.TrimSpace(string(data))) > 0 {
		return data, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read hosts file: %w", err)
	}

	restored, restoreErr := restoreBackup(path)
	if restoreErr != nil {
		return nil, restoreErr
	}
	if !restored {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("hosts file is empty and no backup is available")
	}

	return os.ReadFile(path)
}

// ensureManagedSection appends empty markers to the hosts file if neither
// is present yet, so the first real update has somewhere to splice into.
func ensureManagedSection(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return writeAtomic(path, "127.0.0.1 localhost\n::1 localhost ip6-localhost ip6-loopback\n\n"+beginMarker+"\n"+endMarker+"\n")
		}
		return fmt.Errorf("failed to read hosts file: %w", err)
	}

	content := string(data)
	if strings.Contains(content, beginMarker) && strings.Contains(content, endMarker) {
		return nil
	}

	updated, err := spliceManagedSection(content, nil)
	if err != nil {
		return err
	}
	return writeAtomic(path, updated)
}

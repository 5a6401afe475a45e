package inventory

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/cyberbalsa/gci-goad/internal/target"
)

// ParseINI reads the host lines of one section of an Ansible INI inventory:
//
//	[deployment_boxes]
//	box1 ansible_host=10.1.1.5 ansible_user=ubuntu network_id=1
//
// Host variables are split with shell quoting rules, so quoted values may
// contain spaces. A host without ansible_host uses its name as the address;
// one without network_id gets group 0. The section ends at the next header
// (including "[group:vars]").
func ParseINI(r io.Reader, group string) ([]target.Target, error) {
	header := "[" + group + "]"

	var targets []target.Target
	inSection := false
	lineNo := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "[") {
			if inSection {
				break
			}
			inSection = line == header
			continue
		}
		if !inSection || line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		t, err := parseHostLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		targets = append(targets, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return targets, nil
}

func parseHostLine(line string) (target.Target, error) {
	words, err := shellwords.Parse(line)
	if err != nil {
		return target.Target{}, fmt.Errorf("split host line: %w", err)
	}
	if len(words) == 0 {
		return target.Target{}, fmt.Errorf("empty host line")
	}

	name := words[0]
	address := name
	groupID := 0

	for _, w := range words[1:] {
		key, value, ok := strings.Cut(w, "=")
		if !ok {
			continue
		}
		switch key {
		case "ansible_host":
			address = value
		case "network_id":
			n, err := strconv.Atoi(value)
			if err != nil {
				return target.Target{}, fmt.Errorf("host %s: invalid network_id %q", name, value)
			}
			groupID = n
		}
	}

	return target.New(name, address, groupID), nil
}

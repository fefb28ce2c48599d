// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package inventory parses the ini-like hosts-and-groups document that
// tells NodeGroup which remote hosts to fan a workflow out to.
package inventory

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/ironloom/stagehand/internal/util"
	"github.com/ironloom/stagehand/pkg/errors"
)

// DefaultPort is used when a host line omits ansible_port.
const DefaultPort = 22

// Host is one inventory entry: a connection target plus the groups it
// belongs to and any vars inherited from a `[group:vars]` section.
type Host struct {
	Hostname string
	User     string
	Port     int
	Password string
	Groups   []string
	Vars     map[string]string
}

// Inventory is an ordered set of hosts, deduplicated by hostname, plus the
// group membership recorded while parsing.
type Inventory struct {
	Hosts  []Host
	byName map[string]int
}

// Load reads and parses the inventory file at path.
func Load(path string) (*Inventory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("inventory: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads an ini-like inventory document from r.
//
// Host-group sections (`[name]`) list one host per line as
// `hostname [ansible_user=U] [ansible_port=N] [ansible_password=P] [key=value ...]`.
// Ansible's dialect allows several space-separated key=value pairs on a
// single host line, a shape gopkg.in/ini.v1 cannot parse directly (it
// expects one key=value per line), so those lines are tokenized by hand;
// `[name:vars]` sections are plain single key=value-per-line blocks and
// are parsed with ini.v1, then merged onto every host in `name`.
func Parse(r io.Reader) (*Inventory, error) {
	inv := &Inventory{byName: map[string]int{}}
	groupVarsBlocks := map[string]*strings.Builder{}

	currentGroup := ""
	inVarsSection := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			header := strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
			if base, ok := strings.CutSuffix(header, ":vars"); ok {
				currentGroup = base
				inVarsSection = true
				if groupVarsBlocks[base] == nil {
					groupVarsBlocks[base] = &strings.Builder{}
				}
			} else {
				currentGroup = header
				inVarsSection = false
			}
			continue
		}

		if inVarsSection {
			groupVarsBlocks[currentGroup].WriteString(line)
			groupVarsBlocks[currentGroup].WriteString("\n")
			continue
		}

		host, err := parseHostLine(line)
		if err != nil {
			return nil, fmt.Errorf("inventory: %w", err)
		}
		inv.add(host, currentGroup)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("inventory: scan: %w", err)
	}

	for group, block := range groupVarsBlocks {
		vars, err := parseVarsBlock(block.String())
		if err != nil {
			return nil, fmt.Errorf("inventory: group %q vars: %w", group, err)
		}
		inv.applyGroupVars(group, vars)
	}

	return inv, nil
}

func parseHostLine(line string) (Host, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Host{}, fmt.Errorf("empty host line")
	}

	h := Host{Hostname: fields[0], Port: DefaultPort, Vars: map[string]string{}}
	for _, field := range fields[1:] {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "ansible_user":
			h.User = value
		case "ansible_port":
			port, err := strconv.Atoi(value)
			if err != nil {
				return Host{}, fmt.Errorf("host %s: invalid ansible_port %q: %w", h.Hostname, value, err)
			}
			h.Port = port
		case "ansible_password":
			h.Password = value
		default:
			h.Vars[key] = value
		}
	}
	return h, nil
}

func parseVarsBlock(block string) (map[string]string, error) {
	if strings.TrimSpace(block) == "" {
		return nil, nil
	}
	f, err := ini.Load([]byte(block))
	if err != nil {
		return nil, err
	}
	vars := map[string]string{}
	for _, key := range f.Section("").Keys() {
		vars[key.Name()] = key.Value()
	}
	return vars, nil
}

func (inv *Inventory) add(h Host, group string) {
	if idx, ok := inv.byName[h.Hostname]; ok {
		existing := &inv.Hosts[idx]
		if !util.Contains(existing.Groups, group) {
			existing.Groups = append(existing.Groups, group)
		}
		return
	}
	h.Groups = []string{group}
	inv.byName[h.Hostname] = len(inv.Hosts)
	inv.Hosts = append(inv.Hosts, h)
}

func (inv *Inventory) applyGroupVars(group string, vars map[string]string) {
	for i := range inv.Hosts {
		h := &inv.Hosts[i]
		if !util.Contains(h.Groups, group) {
			continue
		}
		for k, v := range vars {
			switch k {
			case "ansible_user":
				if h.User == "" {
					h.User = v
				}
			case "ansible_port":
				if h.Port == DefaultPort {
					if port, err := strconv.Atoi(v); err == nil {
						h.Port = port
					}
				}
			case "ansible_password":
				if h.Password == "" {
					h.Password = v
				}
			default:
				if _, exists := h.Vars[k]; !exists {
					h.Vars[k] = v
				}
			}
		}
	}
}

// WithHostLimit intersects hosts with a comma-separated limit set.
// An empty limit returns hosts unchanged. An empty intersection is
// reported as an error so callers can fail the run with a descriptive
// reason rather than silently creating zero node actors.
func WithHostLimit(hosts []Host, limit string) ([]Host, error) {
	limit = strings.TrimSpace(limit)
	if limit == "" {
		return hosts, nil
	}
	wanted := map[string]bool{}
	for _, name := range strings.Split(limit, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			wanted[name] = true
		}
	}

	var out []Host
	for _, h := range hosts {
		if wanted[h.Hostname] {
			out = append(out, h)
		}
	}
	if len(out) == 0 {
		return nil, &errors.ValidationError{
			Field:   "limit",
			Message: fmt.Sprintf("host limit %q matched no inventory hosts", limit),
			Hint:    "check the hostnames against the inventory file",
		}
	}
	return out, nil
}

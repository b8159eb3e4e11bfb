//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//

package techmap

import (
	"bufio"
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/markkurossi/techmap/library"
	"github.com/markkurossi/techmap/network"
	"github.com/markkurossi/techmap/utils"
)

const (
	testsuite = "testsuite"
)

var (
	reWhitespace = regexp.MustCompilePOSIX(`[[:space:]]+`)
	reExpect     = regexp.MustCompilePOSIX(`^([a-z]+)(<=|>=|==|<|>)(.+)$`)
)

func TestSuite(t *testing.T) {
	err := filepath.WalkDir(testsuite,
		func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".net") {
				return nil
			}
			testFile(t, path)
			return nil
		})
	if err != nil {
		t.Fatal(err)
	}
}

type expectation struct {
	key   string
	op    string
	value float64
}

func loadLibrary(t *testing.T, file string) *library.Library {
	f, err := os.Open(file)
	if err != nil {
		t.Fatalf("failed to open library: %s", err)
	}
	defer f.Close()
	lib, err := library.Parse(f, file, nil)
	if err != nil {
		t.Fatalf("failed to parse library '%s': %s", file, err)
	}
	return lib
}

func testFile(t *testing.T, file string) {
	data, err := os.ReadFile(file)
	if err != nil {
		t.Errorf("failed to read '%s': %s", file, err)
		return
	}
	params := utils.NewParams()
	libFile := "lib.genlib"
	var expectError bool
	var expects []expectation

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "# @") {
			continue
		}
		parts := reWhitespace.Split(strings.TrimSpace(line[3:]), -1)
		switch parts[0] {
		case "error":
			expectError = true

		case "library":
			libFile = parts[1]

		case "mode":
			params.Mode, err = utils.ParseMode(parts[1])
			if err != nil {
				t.Errorf("%s: %s", file, err)
				return
			}

		case "param":
			for _, p := range parts[1:] {
				if err := setParam(params, p); err != nil {
					t.Errorf("%s: %s", file, err)
					return
				}
			}

		case "expect":
			for _, e := range parts[1:] {
				m := reExpect.FindStringSubmatch(e)
				if m == nil {
					t.Errorf("%s: invalid expectation '%s'", file, e)
					return
				}
				v, err := strconv.ParseFloat(m[3], 64)
				if err != nil {
					t.Errorf("%s: invalid expectation '%s': %s", file, e, err)
					return
				}
				expects = append(expects, expectation{
					key:   m[1],
					op:    m[2],
					value: v,
				})
			}

		default:
			t.Errorf("%s: unknown annotation '%s'", file, parts[0])
			return
		}
	}

	lib := loadLibrary(t, filepath.Join(testsuite, libFile))
	net, err := network.Parse(bytes.NewReader(data), file)
	if err != nil {
		t.Errorf("failed to parse '%s': %s", file, err)
		return
	}
	orig := net.Clone()
	fp := net.Fingerprint()

	report, err := Synthesize(net, lib, params, nil)
	if expectError {
		if err == nil {
			t.Errorf("%s: synthesis succeeded, expected an error", file)
		}
		if net.Fingerprint() != fp {
			t.Errorf("%s: failed synthesis changed the network", file)
		}
		return
	}
	if err != nil {
		t.Errorf("%s: synthesis failed: %s", file, err)
		return
	}
	for _, n := range net.Nodes() {
		if n.Kind == network.Internal && !n.Mapped() {
			t.Errorf("%s: node %s not mapped", file, n)
		}
	}
	if !sequential(orig) {
		checkEquivalent(t, file, orig, net, lib)
	}

	values := map[string]float64{
		"area":    report.Timing.Area,
		"delay":   report.Timing.Delay,
		"slack":   report.Timing.Slack,
		"gates":   float64(report.Timing.Gates),
		"commits": float64(report.Fanout.Commits),
		"changed": 0,
	}
	if report.Changed {
		values["changed"] = 1
	}
	for _, e := range expects {
		v, ok := values[e.key]
		if !ok {
			t.Errorf("%s: unknown value %s", file, e.key)
			continue
		}
		var pass bool
		switch e.op {
		case "<=":
			pass = v <= e.value+1e-9
		case ">=":
			pass = v >= e.value-1e-9
		case "==":
			pass = v >= e.value-1e-9 && v <= e.value+1e-9
		case "<":
			pass = v < e.value
		case ">":
			pass = v > e.value
		}
		if !pass {
			t.Errorf("%s: %s=%v, expected %s%v", file, e.key, v, e.op, e.value)
		}
	}

	var buf bytes.Buffer
	report.PrintGates(&buf)
	report.PrintStats(&buf)
	if !strings.Contains(buf.String(), "Changed") {
		t.Errorf("%s: statistics do not report changes", file)
	}
	if testing.Verbose() {
		t.Logf("%s:\n%s", file, buf.String())
	}
}

func setParam(params *utils.Params, p string) error {
	kv := strings.SplitN(p, "=", 2)
	switch kv[0] {
	case "nofanout":
		params.Fanout.Disabled = true
	case "force":
		params.Fanout.ForceRequired = true
	case "recovery":
		params.Fanout.AreaRecovery = true
		params.Fanout.Resize = true
	case "duplicate":
		params.AllowDuplication = true
	case "iterations":
		if len(kv) != 2 {
			return strconv.ErrSyntax
		}
		v, err := strconv.Atoi(kv[1])
		if err != nil {
			return err
		}
		params.Iterations = v
	case "algorithms":
		if len(kv) != 2 {
			return strconv.ErrSyntax
		}
		return params.SetAlgorithms(kv[1])
	default:
		return os.ErrInvalid
	}
	return nil
}

func sequential(net *network.Network) bool {
	for _, n := range net.Nodes() {
		if n.Sequential() {
			return true
		}
	}
	return false
}

// evaluate computes the output values of a generic or mapped
// combinational network for the input assignment where bit i is the
// value of the input names[i].
func evaluate(t *testing.T, net *network.Network, lib *library.Library,
	names []string, inputs uint) map[string]bool {

	values := make(map[network.NodeID]bool)
	for i, name := range names {
		in := net.Lookup(name)
		if in == nil || !in.IsInput() {
			t.Fatalf("evaluate: input %s not found", name)
		}
		values[in.ID] = inputs&(1<<uint(i)) != 0
	}
	for _, n := range net.TopoOrder() {
		if n.IsInput() {
			continue
		}
		in := make([]bool, len(n.Fanins))
		for i, f := range n.Fanins {
			in[i] = values[f]
		}
		var v bool
		switch {
		case n.IsOutput():
			v = in[0]
		case n.Mapped():
			var row uint
			for i, b := range in {
				if b {
					row |= 1 << uint(i)
				}
			}
			v = lib.Gate(n.Gate).Function&(1<<row) != 0
		default:
			switch n.Op {
			case network.Const0:
			case network.Const1:
				v = true
			case network.Wire, network.Buf:
				v = in[0]
			case network.Inv:
				v = !in[0]
			case network.Nand:
				v = !(in[0] && in[1])
			case network.Nor:
				v = !(in[0] || in[1])
			case network.And:
				v = in[0] && in[1]
			case network.Or:
				v = in[0] || in[1]
			case network.Xor:
				v = in[0] != in[1]
			case network.Xnor:
				v = in[0] == in[1]
			default:
				t.Fatalf("evaluate: unsupported node %s", n)
			}
		}
		values[n.ID] = v
	}
	result := make(map[string]bool)
	for _, o := range net.Outputs() {
		result[o.Name] = values[o.ID]
	}
	return result
}

func checkEquivalent(t *testing.T, file string, a, b *network.Network,
	lib *library.Library) {

	var names []string
	for _, in := range a.Inputs() {
		names = append(names, in.Name)
	}
	for v := uint(0); v < 1<<uint(len(names)); v++ {
		ra := evaluate(t, a, lib, names, v)
		rb := evaluate(t, b, lib, names, v)
		for name, val := range ra {
			if rb[name] != val {
				t.Errorf("%s: inputs %b: output %s: %v != %v",
					file, v, name, val, rb[name])
			}
		}
	}
}

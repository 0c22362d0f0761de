package anydata

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
	"github.com/unixpickle/essentials"
)

// RULTable is the name of the optional file in a data
// directory which lists the remaining life of each bearing
// as "name,rul" rows.
const RULTable = "rul.csv"

// Directory loads bearings from a directory laid out as
// <root>/<bearing>/acc_*.csv.
//
// Each acceleration file is one cycle. Its rows are
// samples, and the last Channels columns are the channels.
type Directory struct {
	Root string

	// Channels is the number of trailing columns to read.
	// If 0, two channels (horizontal and vertical) are
	// read.
	Channels int

	// Workers limits the number of bearings loaded at once.
	// If 0, one bearing is loaded at a time.
	Workers int

	// Logger receives a line per loaded bearing.
	// If nil, the standard logger is used.
	Logger *logrus.Logger
}

// Load reads the selected bearings into memory.
//
// If cond is empty, every bearing directory is loaded.
func (d *Directory) Load(cond Condition) (Memory, error) {
	ruls, err := d.readRULs()
	if err != nil {
		return nil, essentials.AddCtx("load directory", err)
	}
	if len(cond) == 0 {
		if cond, err = d.bearingNames(); err != nil {
			return nil, fmt.Errorf("load directory: %w", err)
		}
	}

	p := pool.NewWithResults[namedBearing]().WithErrors().
		WithMaxGoroutines(max(1, d.Workers))
	for _, name := range cond {
		p.Go(func() (namedBearing, error) {
			b, err := d.loadBearing(name)
			if err != nil {
				return namedBearing{}, err
			}
			b.RUL = ruls[name]
			return namedBearing{Name: name, Bearing: b}, nil
		})
	}
	loaded, err := p.Wait()
	if err != nil {
		return nil, fmt.Errorf("load directory: %w", err)
	}
	res := Memory{}
	for _, b := range loaded {
		res[b.Name] = b.Bearing
	}
	return res, nil
}

// Value loads the selected bearings and returns one of
// their fields.
// The RUL field only reads the RUL table.
func (d *Directory) Value(field string, cond Condition) ([]Entry, error) {
	if field != FieldData && field != FieldRUL {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	if len(cond) == 0 {
		return nil, fmt.Errorf("%w: no bearings selected", ErrInvalidSelection)
	}
	if field == FieldData {
		mem, err := d.Load(cond)
		if err != nil {
			return nil, err
		}
		return mem.Value(field, cond)
	}
	ruls, err := d.readRULs()
	if err != nil {
		return nil, essentials.AddCtx("load directory", err)
	}
	var res []Entry
	for _, name := range cond {
		if info, err := os.Stat(filepath.Join(d.Root, name)); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("%w: no bearing named %q", ErrInvalidSelection, name)
		}
		res = append(res, Entry{Name: name, RUL: ruls[name]})
	}
	return res, nil
}

type namedBearing struct {
	Name    string
	Bearing *Bearing
}

func (d *Directory) bearingNames() (Condition, error) {
	listing, err := os.ReadDir(d.Root)
	if err != nil {
		return nil, err
	}
	var res Condition
	for _, entry := range listing {
		if entry.IsDir() {
			res = append(res, entry.Name())
		}
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("%w: no bearings in %s", ErrInvalidSelection, d.Root)
	}
	return res, nil
}

func (d *Directory) loadBearing(name string) (*Bearing, error) {
	paths, err := filepath.Glob(filepath.Join(d.Root, name, "acc_*.csv"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no acceleration files for %q", ErrInvalidSelection, name)
	}
	sort.Strings(paths)
	res := &Bearing{}
	for _, path := range paths {
		cycle, err := d.readCycle(path)
		if err != nil {
			return nil, essentials.AddCtx(name, err)
		}
		res.Cycles = append(res.Cycles, cycle)
	}
	d.logger().WithFields(logrus.Fields{
		"bearing": name,
		"cycles":  len(res.Cycles),
	}).Debug("loaded bearing")
	return res, nil
}

func (d *Directory) readCycle(path string) ([][]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = detectDelimiter(data)
	r.FieldsPerRecord = -1
	channels := d.Channels
	if channels == 0 {
		channels = 2
	}
	var res [][]float64
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, essentials.AddCtx(filepath.Base(path), err)
		}
		if len(record) < channels {
			return nil, fmt.Errorf("%s: row has %d columns but need %d",
				filepath.Base(path), len(record), channels)
		}
		row := make([]float64, channels)
		for i, field := range record[len(record)-channels:] {
			row[i], err = strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, essentials.AddCtx(filepath.Base(path), err)
			}
		}
		res = append(res, row)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("%s: no samples", filepath.Base(path))
	}
	return res, nil
}

func (d *Directory) readRULs() (map[string]float64, error) {
	res := map[string]float64{}
	f, err := os.Open(filepath.Join(d.Root, RULTable))
	if os.IsNotExist(err) {
		return res, nil
	} else if err != nil {
		return nil, err
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, essentials.AddCtx("read RUL table", err)
	}
	for _, record := range records {
		if len(record) != 2 {
			return nil, fmt.Errorf("read RUL table: expected 2 columns but got %d",
				len(record))
		}
		rul, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return nil, essentials.AddCtx("read RUL table", err)
		}
		res[strings.TrimSpace(record[0])] = rul
	}
	return res, nil
}

func (d *Directory) logger() *logrus.Logger {
	if d.Logger == nil {
		return logrus.StandardLogger()
	}
	return d.Logger
}

// detectDelimiter picks ';' if the first line uses it, and
// ',' otherwise.
func detectDelimiter(data []byte) rune {
	line, _, _ := bufio.NewReader(bytes.NewReader(data)).ReadLine()
	if bytes.ContainsRune(line, ';') {
		return ';'
	}
	return ','
}

// Package log writes hourly-rotated, zstd-compressed JSONL logs.
package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"biomesxp.io/internal/chain"
	"biomesxp.io/internal/deploy"
)

type JSONLZstdWriter struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	dir := filepath.Dir(w.pathForHour(hour))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// TxLogger writes one JSONL entry per transaction record (compressed).
type TxLogger struct {
	w      *JSONLZstdWriter
	logger *log.Logger
}

func NewTxLogger(dataDir string, logger *log.Logger) *TxLogger {
	if logger == nil {
		logger = log.Default()
	}
	return &TxLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "txs"), "txs"), logger: logger}
}

func (l *TxLogger) RecordTx(r chain.TxRecord) {
	if err := l.w.Write(r); err != nil {
		l.logger.Printf("txlog: %v", err)
	}
}

func (l *TxLogger) Close() error { return l.w.Close() }

// DeployLogger appends every deployment, including replaced ones, to
// deployments JSONL (compressed).
type DeployLogger struct{ w *JSONLZstdWriter }

func NewDeployLogger(dataDir string) *DeployLogger {
	return &DeployLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "deployments"), "deployments")}
}

func (l *DeployLogger) RecordDeployment(d deploy.Deployment) error { return l.w.Write(d) }
func (l *DeployLogger) Close() error                               { return l.w.Close() }

// ReadJSONL decodes every line of a compressed JSONL file into fn.
func ReadJSONL(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := fn(sc.Bytes()); err != nil {
			return err
		}
	}
	return sc.Err()
}

// ReadTxLog loads the records of one tx log file.
func ReadTxLog(path string) ([]chain.TxRecord, error) {
	var out []chain.TxRecord
	err := ReadJSONL(path, func(line []byte) error {
		var r chain.TxRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

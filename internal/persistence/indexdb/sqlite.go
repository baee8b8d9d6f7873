package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	_ "modernc.org/sqlite"

	"biomesxp.io/internal/chain"
	"biomesxp.io/internal/deploy"
)

// SQLiteIndex stores deployments and the transaction history. Deployments
// are written synchronously so lookups see them at once; transaction
// records go through a background writer and are dropped when it falls
// behind.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan chain.TxRecord
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DropTxTotal   uint64 `json:"drop_tx_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan chain.TxRecord, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS abis (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS deployments (
			chain_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			address TEXT NOT NULL,
			deployer TEXT NOT NULL,
			tx_hash TEXT NOT NULL,
			block INTEGER NOT NULL,
			abi_json TEXT NOT NULL,
			deployed_at TEXT NOT NULL,
			PRIMARY KEY (chain_id, name)
		);`,
		`CREATE TABLE IF NOT EXISTS txs (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			recorded_at TEXT NOT NULL,
			chain_id INTEGER NOT NULL,
			contract TEXT NOT NULL,
			method TEXT NOT NULL,
			from_addr TEXT NOT NULL,
			to_addr TEXT NOT NULL,
			value TEXT NOT NULL,
			hash TEXT NOT NULL,
			status TEXT NOT NULL,
			block INTEGER NOT NULL,
			gas_used INTEGER NOT NULL,
			error TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_txs_hash ON txs(hash);`,
		`CREATE INDEX IF NOT EXISTS idx_txs_from ON txs(from_addr, seq);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropTxTotal:   s.dropped.Load(),
	}
}

// RecordTx queues a transaction record.
func (s *SQLiteIndex) RecordTx(r chain.TxRecord) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		// The JSONL tx log remains complete.
		s.dropped.Add(1)
	}
}

// RecordDeployment replaces the chain's entry for d.Name.
func (s *SQLiteIndex) RecordDeployment(d deploy.Deployment) error {
	if d.Name == "" {
		return errors.New("deployment without name")
	}
	at := d.Time
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO deployments(chain_id,name,address,deployer,tx_hash,block,abi_json,deployed_at) VALUES(?,?,?,?,?,?,?,?)`,
		int64(d.ChainID),
		d.Name,
		d.Address.Hex(),
		d.Deployer.Hex(),
		d.TxHash.Hex(),
		int64(d.Block),
		string(d.ABI),
		at.Format(time.RFC3339Nano),
	)
	return err
}

// Lookup returns the recorded address of name on chainID.
func (s *SQLiteIndex) Lookup(chainID uint64, name string) (common.Address, bool, error) {
	var addr string
	err := s.db.QueryRow(`SELECT address FROM deployments WHERE chain_id=? AND name=?`, int64(chainID), name).Scan(&addr)
	if errors.Is(err, sql.ErrNoRows) {
		return common.Address{}, false, nil
	}
	if err != nil {
		return common.Address{}, false, err
	}
	return common.HexToAddress(addr), true, nil
}

// Deployments lists a chain's recorded contracts by name.
func (s *SQLiteIndex) Deployments(chainID uint64) ([]deploy.Deployment, error) {
	rows, err := s.db.Query(
		`SELECT name,address,deployer,tx_hash,block,abi_json,deployed_at FROM deployments WHERE chain_id=? ORDER BY name`,
		int64(chainID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []deploy.Deployment
	for rows.Next() {
		var (
			d                        deploy.Deployment
			addr, from, hash, abiStr string
			at                       string
			block                    int64
		)
		if err := rows.Scan(&d.Name, &addr, &from, &hash, &block, &abiStr, &at); err != nil {
			return nil, err
		}
		d.ChainID = chainID
		d.Address = common.HexToAddress(addr)
		d.Deployer = common.HexToAddress(from)
		d.TxHash = common.HexToHash(hash)
		d.Block = uint64(block)
		d.ABI = []byte(abiStr)
		d.Time, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, d)
	}
	return out, rows.Err()
}

// RecentTxs returns up to limit records, newest first. A zero from matches
// every sender.
func (s *SQLiteIndex) RecentTxs(from common.Address, limit int) ([]chain.TxRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT recorded_at,chain_id,contract,method,from_addr,to_addr,value,hash,status,block,gas_used,COALESCE(error,'') FROM txs`
	args := []any{}
	if from != (common.Address{}) {
		q += ` WHERE from_addr=?`
		args = append(args, from.Hex())
	}
	q += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []chain.TxRecord
	for rows.Next() {
		var (
			r              chain.TxRecord
			at             string
			chainID, block int64
			gas            int64
		)
		if err := rows.Scan(&at, &chainID, &r.Contract, &r.Method, &r.From, &r.To, &r.Value, &r.Hash, &r.Status, &block, &gas, &r.Error); err != nil {
			return nil, err
		}
		r.Time, _ = time.Parse(time.RFC3339Nano, at)
		r.ChainID = uint64(chainID)
		r.Block = uint64(block)
		r.GasUsed = uint64(gas)
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertABIs stores the contract ABIs a process serves, keyed by name with
// a content digest.
func (s *SQLiteIndex) UpsertABIs(abis map[string][]byte) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	names := make([]string, 0, len(abis))
	for n := range abis {
		names = append(names, n)
	}
	sort.Strings(names)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO abis(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, n := range names {
		b := abis[n]
		if n == "" || len(b) == 0 {
			continue
		}
		sum := sha256.Sum256(b)
		if _, err := stmt.Exec(n, hex.EncodeToString(sum[:]), string(b), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ABIDigest returns the stored digest for name.
func (s *SQLiteIndex) ABIDigest(name string) (string, bool, error) {
	var d string
	err := s.db.QueryRow(`SELECT digest FROM abis WHERE name=?`, name).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return d, true, nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTx, _ := s.db.Prepare(`INSERT INTO txs(recorded_at,chain_id,contract,method,from_addr,to_addr,value,hash,status,block,gas_used,error) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertTx != nil {
			_ = insertTx.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 200
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for {
		var (
			r  chain.TxRecord
			ok bool
		)
		if tx == nil {
			r, ok = <-s.ch
		} else {
			// An open batch is committed once the queue goes idle.
			select {
			case r, ok = <-s.ch:
			case <-time.After(commitMaxWait):
				commit()
				continue
			}
		}
		if !ok {
			break
		}
		begin()
		if tx == nil || insertTx == nil {
			continue
		}
		at := r.Time
		if at.IsZero() {
			at = time.Now().UTC()
		}
		if _, err := tx.Stmt(insertTx).Exec(
			at.Format(time.RFC3339Nano),
			int64(r.ChainID),
			r.Contract,
			r.Method,
			r.From,
			r.To,
			r.Value,
			r.Hash,
			r.Status,
			int64(r.Block),
			int64(r.GasUsed),
			r.Error,
		); err != nil {
			rollback()
			continue
		}
		opCount++
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}

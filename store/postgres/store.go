// Package postgres is the concrete core.Store adapter backing this
// indexer's relational store. The schema and its migrations live outside this
// repository; this package only issues queries against the expected table
// and view names (addresses, outputs, inputs, runes, rune_outputs,
// output_extras, checkpoints, block_records, api_keys, and the
// balances/utxos/runes_balances views the store maintains).
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rune-indexer/core"
	"rune-indexer/pkg/utils"
)

// Store is a pgx-backed core.Store implementation.
type Store struct {
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

// Open connects a pgxpool.Pool to dsn, sizing it per config's max/min
// connection settings.
func Open(ctx context.Context, dsn string, maxConns, minConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, utils.Wrap(err, "parse postgres dsn")
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns > 0 {
		cfg.MinConns = minConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, utils.Wrap(err, "open postgres pool")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() { s.pool.Close() }

// Ping implements core.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GetCheckpoint implements core.Store.
func (s *Store) GetCheckpoint(ctx context.Context, indexer string) (core.Checkpoint, error) {
	var cp core.Checkpoint
	cp.Indexer = indexer
	err := s.pool.QueryRow(ctx,
		`SELECT last_committed_height FROM checkpoints WHERE indexer = $1`, indexer,
	).Scan(&cp.Height)
	if err != nil {
		return cp, utils.Wrap(err, fmt.Sprintf("get checkpoint(%s)", indexer))
	}
	return cp, nil
}

// SetCheckpoint implements core.Store.
func (s *Store) SetCheckpoint(ctx context.Context, cp core.Checkpoint) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO checkpoints (indexer, last_committed_height)
		VALUES ($1, $2)
		ON CONFLICT (indexer) DO UPDATE SET last_committed_height = EXCLUDED.last_committed_height
	`, cp.Indexer, cp.Height)
	return utils.Wrap(err, "set checkpoint")
}

// GetBlockByHash implements core.Store.
func (s *Store) GetBlockByHash(ctx context.Context, indexer string, hash core.Hash) (core.Block, bool, error) {
	var b core.Block
	b.Indexer = indexer
	err := s.pool.QueryRow(ctx, `
		SELECT height, block_hash, block_time FROM block_records
		WHERE indexer = $1 AND block_hash = $2
	`, indexer, hash.Bytes()).Scan(&b.Height, &b.Hash, &b.BlockTime)
	if err == pgx.ErrNoRows {
		return core.Block{}, false, nil
	}
	if err != nil {
		return core.Block{}, false, utils.Wrap(err, "get block by hash")
	}
	return b, true, nil
}

// DeleteBlocksAbove implements core.Store: the reorg rewind deletes every row this indexer owns at block >= height+1.
func (s *Store) DeleteBlocksAbove(ctx context.Context, indexer string, height int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return utils.Wrap(err, "begin rewind tx")
	}
	defer tx.Rollback(ctx)

	rewindFrom := height + 1

	switch indexer {
	case core.BitcoinIndexName:
		if _, err := tx.Exec(ctx, `DELETE FROM outputs WHERE block_height >= $1`, rewindFrom); err != nil {
			return utils.Wrap(err, "rewind outputs")
		}
		if _, err := tx.Exec(ctx, `DELETE FROM inputs WHERE block_height >= $1`, rewindFrom); err != nil {
			return utils.Wrap(err, "rewind inputs")
		}
	case core.RunesIndexName:
		if _, err := tx.Exec(ctx, `DELETE FROM rune_outputs WHERE block >= $1`, rewindFrom); err != nil {
			return utils.Wrap(err, "rewind rune_outputs")
		}
		if _, err := tx.Exec(ctx, `DELETE FROM runes WHERE block >= $1`, rewindFrom); err != nil {
			return utils.Wrap(err, "rewind runes")
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM block_records WHERE indexer = $1 AND height >= $2`, indexer, rewindFrom); err != nil {
		return utils.Wrap(err, "rewind block_records")
	}

	return tx.Commit(ctx)
}

// InsertBlockRecord implements core.Store.
func (s *Store) InsertBlockRecord(ctx context.Context, block core.Block) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO block_records (indexer, height, block_hash, block_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (indexer, height) DO UPDATE SET block_hash = EXCLUDED.block_hash, block_time = EXCLUDED.block_time
	`, block.Indexer, block.Height, block.Hash.Bytes(), block.BlockTime)
	return utils.Wrap(err, "insert block record")
}

// CommitBlock implements core.Store: one transaction writing every row a
// TxIndexer staged for a block.
func (s *Store) CommitBlock(ctx context.Context, batch core.BlockBatch) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return utils.Wrap(err, "begin commit tx")
	}
	defer tx.Rollback(ctx)

	for _, a := range batch.Addresses {
		if _, err := tx.Exec(ctx, `
			INSERT INTO addresses (address, address_type, pk_script)
			VALUES ($1, $2, $3)
			ON CONFLICT (address) DO NOTHING
		`, a.Address, a.AddressType, a.PkScript); err != nil {
			return utils.Wrap(err, "insert address")
		}
	}

	for _, o := range batch.Outputs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO outputs (block_height, tx_index_in_block, tx_hash, vout, address, amount_sats, coinbase_flag)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (tx_hash, vout) DO NOTHING
		`, o.Block, o.TxID, o.TxHash.Bytes(), o.Vout, o.Address, o.Amount, o.Coinbase); err != nil {
			return utils.Wrap(err, "insert output")
		}
	}

	for _, in := range batch.Inputs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO inputs (block_height, tx_index_in_block, tx_hash, vin, parent_tx, parent_vout)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, in.Block, in.TxID, in.TxHash.Bytes(), in.Vin, in.ParentTx.Bytes(), in.ParentVout); err != nil {
			return utils.Wrap(err, "insert input")
		}
	}

	for _, r := range batch.RuneUpserts {
		if err := upsertRune(ctx, tx, r); err != nil {
			return err
		}
	}

	for _, ru := range batch.RuneUtxos {
		if _, err := tx.Exec(ctx, `
			INSERT INTO rune_outputs (block, tx_index, tx_hash, vout, rune_name, rune_id, address, amount, btc_amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, ru.Block, ru.TxID, ru.TxHash.Bytes(), ru.Vout, ru.Rune, ru.RuneID, ru.Address, ru.Amount.String(), ru.BTCAmount); err != nil {
			return utils.Wrap(err, "insert rune output")
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO output_extras (output_id, has_runes, has_inscriptions)
			SELECT id, true, false FROM outputs WHERE tx_hash = $1 AND vout = $2
			ON CONFLICT (output_id) DO UPDATE SET has_runes = true
		`, ru.TxHash.Bytes(), ru.Vout); err != nil {
			return utils.Wrap(err, "mark output has_runes")
		}
	}

	for _, out := range batch.InscribedOutpoints {
		if _, err := tx.Exec(ctx, `
			INSERT INTO output_extras (output_id, has_runes, has_inscriptions)
			SELECT id, false, true FROM outputs WHERE tx_hash = $1 AND vout = $2
			ON CONFLICT (output_id) DO UPDATE SET has_inscriptions = true
		`, out.TxHash.Bytes(), out.Vout); err != nil {
			return utils.Wrap(err, "mark output has_inscriptions")
		}
	}

	return tx.Commit(ctx)
}

func upsertRune(ctx context.Context, tx pgx.Tx, r core.Rune) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO runes (
			block, tx_index, rune_id, name, display_name, symbol, divisibility,
			max_supply, premine, minted, burned, in_circulation, mints, turbo,
			cenotaph_flag, block_time, etching_tx, commitment_tx
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		ON CONFLICT (block, tx_index) DO UPDATE SET
			minted = EXCLUDED.minted,
			burned = EXCLUDED.burned,
			in_circulation = EXCLUDED.in_circulation,
			mints = EXCLUDED.mints
	`,
		r.Block, r.TxID, r.RuneIDStr, r.Name, r.DisplayName, r.Symbol, r.Divisibility,
		r.MaxSupply.String(), r.Premine.String(), r.Minted.String(), r.Burned.String(),
		r.InCirculation.String(), r.Mints, r.Turbo, r.Cenotaph, r.BlockTime,
		r.EtchingTx.Bytes(), r.CommitmentTx.Bytes(),
	)
	return utils.Wrap(err, "upsert rune")
}

// GetBalance implements core.Store against the balances view.
func (s *Store) GetBalance(ctx context.Context, address string) (core.Balance, error) {
	bal := core.Balance{Address: address}
	err := s.pool.QueryRow(ctx,
		`SELECT balance_sats FROM balances WHERE address = $1`, address,
	).Scan(&bal.Balance)
	if err == pgx.ErrNoRows {
		return bal, nil
	}
	if err != nil {
		return bal, utils.Wrap(err, "get balance")
	}
	return bal, nil
}

// GetRuneBalance implements core.Store against the runes_balances view.
func (s *Store) GetRuneBalance(ctx context.Context, address, rune string) (core.RuneBalance, error) {
	bal := core.RuneBalance{Address: address, Rune: rune, Balance: core.ZeroAmount}
	var amountStr string
	err := s.pool.QueryRow(ctx,
		`SELECT balance FROM runes_balances WHERE address = $1 AND rune = $2`, address, rune,
	).Scan(&amountStr)
	if err == pgx.ErrNoRows {
		return bal, nil
	}
	if err != nil {
		return bal, utils.Wrap(err, "get rune balance")
	}
	amt, parseErr := core.ParseAmount(amountStr)
	if parseErr != nil {
		return bal, parseErr
	}
	bal.Balance = amt
	return bal, nil
}

// GetAddressBTCUtxoGEAmount implements the collector shortcut:
// a single UTXO whose amount already covers the target.
func (s *Store) GetAddressBTCUtxoGEAmount(ctx context.Context, address string, amount int64) (*core.Output, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT o.id, o.block_height, o.tx_index_in_block, o.tx_hash, o.vout, o.address, o.amount_sats, o.coinbase_flag
		FROM utxos o WHERE o.address = $1 AND o.amount_sats >= $2
		ORDER BY o.amount_sats ASC LIMIT 1
	`, address, amount)
	out, err := scanOutput(row)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, utils.Wrap(err, "get shortcut utxo")
	}
	return out, true, nil
}

// GetAddressRuneUtxoGEAmount is the rune-balance analogue.
func (s *Store) GetAddressRuneUtxoGEAmount(ctx context.Context, address, rune string, amount core.Amount) (*core.RuneUtxo, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT ro.id, ro.block, ro.tx_index, ro.tx_hash, ro.vout, ro.rune_name, ro.rune_id, ro.address, ro.amount, ro.btc_amount
		FROM rune_outputs ro
		WHERE ro.address = $1 AND ro.rune_name = $2 AND ro.amount::numeric >= $3::numeric
		ORDER BY ro.amount::numeric ASC LIMIT 1
	`, address, rune, amount.String())
	utxo, err := scanRuneUtxo(row)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, utils.Wrap(err, "get shortcut rune utxo")
	}
	return utxo, true, nil
}

// SelectUTXOsInAmountRange implements the collector's shortcut candidate
// fetch: the biggest UTXOs whose amounts fall inside [min, max].
func (s *Store) SelectUTXOsInAmountRange(ctx context.Context, address string, min, max int64, limit int) ([]core.Output, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, block_height, tx_index_in_block, tx_hash, vout, address, amount_sats, coinbase_flag
		FROM utxos WHERE address = $1 AND amount_sats BETWEEN $2 AND $3
		ORDER BY amount_sats DESC
		LIMIT $4
	`, address, min, max, limit)
	if err != nil {
		return nil, utils.Wrap(err, "select utxos in range")
	}
	defer rows.Close()

	var out []core.Output
	for rows.Next() {
		o, err := scanOutputRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// SelectRuneUTXOsInAmountRange is the rune-balance analogue.
func (s *Store) SelectRuneUTXOsInAmountRange(ctx context.Context, address, rune string, min, max core.Amount, limit int) ([]core.RuneUtxo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, block, tx_index, tx_hash, vout, rune_name, rune_id, address, amount, btc_amount
		FROM rune_outputs
		WHERE address = $1 AND rune_name = $2 AND amount::numeric BETWEEN $3::numeric AND $4::numeric
		ORDER BY amount::numeric DESC
		LIMIT $5
	`, address, rune, min.String(), max.String(), limit)
	if err != nil {
		return nil, utils.Wrap(err, "select rune utxos in range")
	}
	defer rows.Close()

	var out []core.RuneUtxo
	for rows.Next() {
		u, err := scanRuneUtxoRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// SelectUTXOWithPagination implements the collector's fallback candidate
// fetch: one amount-ordered page at a time.
func (s *Store) SelectUTXOWithPagination(ctx context.Context, address string, order core.OrderBy, limit *int, sort core.UtxoSortMode, maxRows, offset int) ([]core.Output, error) {
	orderSQL := "DESC"
	if order == core.OrderAsc {
		orderSQL = "ASC"
	}
	col := "amount_sats"
	if sort == core.SortByBlock {
		col = "block_height"
	}
	rowLimit := maxRows
	if limit != nil && *limit < rowLimit {
		rowLimit = *limit
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, block_height, tx_index_in_block, tx_hash, vout, address, amount_sats, coinbase_flag
		FROM utxos WHERE address = $1
		ORDER BY %s %s
		LIMIT $2 OFFSET $3
	`, col, orderSQL), address, rowLimit, offset)
	if err != nil {
		return nil, utils.Wrap(err, "select utxos")
	}
	defer rows.Close()

	var out []core.Output
	for rows.Next() {
		o, err := scanOutputRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// SelectRuneUTXOWithPagination is the rune-balance analogue.
func (s *Store) SelectRuneUTXOWithPagination(ctx context.Context, rune, address string, order core.OrderBy, limit *int, sort core.UtxoSortMode, maxRows, offset int) ([]core.RuneUtxo, error) {
	orderSQL := "DESC"
	if order == core.OrderAsc {
		orderSQL = "ASC"
	}
	col := "amount::numeric"
	if sort == core.SortByBlock {
		col = "block"
	}
	rowLimit := maxRows
	if limit != nil && *limit < rowLimit {
		rowLimit = *limit
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, block, tx_index, tx_hash, vout, rune_name, rune_id, address, amount, btc_amount
		FROM rune_outputs WHERE rune_name = $1 AND address = $2
		ORDER BY %s %s
		LIMIT $3 OFFSET $4
	`, col, orderSQL), rune, address, rowLimit, offset)
	if err != nil {
		return nil, utils.Wrap(err, "select rune utxos")
	}
	defer rows.Close()

	var out []core.RuneUtxo
	for rows.Next() {
		u, err := scanRuneUtxoRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ListUTXOs implements the paginated read-path listing, sortable
// by age (block height) or amount and optionally bounded below by
// amountThreshold.
func (s *Store) ListUTXOs(ctx context.Context, address string, limit, offset uint32, order core.OrderBy, sort core.UtxoSortMode, amountThreshold int64) ([]core.Output, uint64, error) {
	orderSQL := "DESC"
	if order == core.OrderAsc {
		orderSQL = "ASC"
	}
	col := "block_height"
	if sort == core.SortByAmount {
		col = "amount_sats"
	}

	var total uint64
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM utxos WHERE address = $1 AND amount_sats >= $2`, address, amountThreshold,
	).Scan(&total); err != nil {
		return nil, 0, utils.Wrap(err, "count utxos")
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, block_height, tx_index_in_block, tx_hash, vout, address, amount_sats, coinbase_flag
		FROM utxos WHERE address = $1 AND amount_sats >= $2
		ORDER BY %s %s
		LIMIT $3 OFFSET $4
	`, col, orderSQL), address, amountThreshold, limit, offset)
	if err != nil {
		return nil, 0, utils.Wrap(err, "list utxos")
	}
	defer rows.Close()

	var out []core.Output
	for rows.Next() {
		o, err := scanOutputRows(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

// ListRuneUTXOs is the rune-balance analogue of ListUTXOs.
func (s *Store) ListRuneUTXOs(ctx context.Context, address, rune string, limit, offset uint32, order core.OrderBy) ([]core.RuneUtxo, uint64, error) {
	orderSQL := "DESC"
	if order == core.OrderAsc {
		orderSQL = "ASC"
	}

	var total uint64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM rune_outputs WHERE address = $1 AND rune_name = $2`, address, rune).Scan(&total); err != nil {
		return nil, 0, utils.Wrap(err, "count rune utxos")
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, block, tx_index, tx_hash, vout, rune_name, rune_id, address, amount, btc_amount
		FROM rune_outputs WHERE address = $1 AND rune_name = $2
		ORDER BY block %s
		LIMIT $3 OFFSET $4
	`, orderSQL), address, rune, limit, offset)
	if err != nil {
		return nil, 0, utils.Wrap(err, "list rune utxos")
	}
	defer rows.Close()

	var out []core.RuneUtxo
	for rows.Next() {
		u, err := scanRuneUtxoRows(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// GetOutputExtras implements core.Store.
func (s *Store) GetOutputExtras(ctx context.Context, outputIDs []int64) (map[int64]core.OutputExtras, error) {
	out := make(map[int64]core.OutputExtras, len(outputIDs))
	if len(outputIDs) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT output_id, has_runes, has_inscriptions FROM output_extras WHERE output_id = ANY($1)
	`, outputIDs)
	if err != nil {
		return nil, utils.Wrap(err, "get output extras")
	}
	defer rows.Close()
	for rows.Next() {
		var ex core.OutputExtras
		if err := rows.Scan(&ex.ID, &ex.HasRunes, &ex.HasInscriptions); err != nil {
			return nil, err
		}
		out[ex.ID] = ex
	}
	return out, rows.Err()
}

// GetRuneByName implements core.Store.
func (s *Store) GetRuneByName(ctx context.Context, name string) (*core.Rune, bool, error) {
	return s.queryRune(ctx, `WHERE name = $1`, name)
}

// GetRuneByID implements core.Store.
func (s *Store) GetRuneByID(ctx context.Context, id core.RuneID) (*core.Rune, bool, error) {
	return s.queryRune(ctx, `WHERE rune_id = $1`, id.String())
}

func (s *Store) queryRune(ctx context.Context, where string, arg any) (*core.Rune, bool, error) {
	var r core.Rune
	var maxSupply, premine, minted, burned, inCirculation string
	var etchingTx, commitmentTx []byte
	row := s.pool.QueryRow(ctx, `
		SELECT block, tx_index, rune_id, name, display_name, symbol, divisibility,
			max_supply, premine, minted, burned, in_circulation, mints, turbo,
			cenotaph_flag, block_time, etching_tx, commitment_tx
		FROM runes `+where, arg)
	err := row.Scan(
		&r.Block, &r.TxID, &r.RuneIDStr, &r.Name, &r.DisplayName, &r.Symbol, &r.Divisibility,
		&maxSupply, &premine, &minted, &burned, &inCirculation, &r.Mints, &r.Turbo,
		&r.Cenotaph, &r.BlockTime, &etchingTx, &commitmentTx,
	)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, utils.Wrap(err, "query rune")
	}
	for _, pair := range []struct {
		dst *core.Amount
		src string
	}{{&r.MaxSupply, maxSupply}, {&r.Premine, premine}, {&r.Minted, minted}, {&r.Burned, burned}, {&r.InCirculation, inCirculation}} {
		amt, err := core.ParseAmount(pair.src)
		if err != nil {
			return nil, false, err
		}
		*pair.dst = amt
	}
	copy(r.EtchingTx[:], etchingTx)
	copy(r.CommitmentTx[:], commitmentTx)
	return &r, true, nil
}

// GetRuneUtxosAtOutPoint implements core.Store.
func (s *Store) GetRuneUtxosAtOutPoint(ctx context.Context, out core.OutPoint) ([]core.RuneUtxo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, block, tx_index, tx_hash, vout, rune_name, rune_id, address, amount, btc_amount
		FROM rune_outputs WHERE tx_hash = $1 AND vout = $2
	`, out.TxHash.Bytes(), out.Vout)
	if err != nil {
		return nil, utils.Wrap(err, "get rune utxos at outpoint")
	}
	defer rows.Close()

	var result []core.RuneUtxo
	for rows.Next() {
		u, err := scanRuneUtxoRows(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// ListAPIKeys implements core.Store.
func (s *Store) ListAPIKeys(ctx context.Context) ([]core.APIKey, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, key, blocked, can_lock_utxo FROM api_keys`)
	if err != nil {
		return nil, utils.Wrap(err, "list api keys")
	}
	defer rows.Close()

	var out []core.APIKey
	for rows.Next() {
		var k core.APIKey
		if err := rows.Scan(&k.Name, &k.Key, &k.Blocked, &k.CanLockUTXO); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// CreateAPIKey implements core.Store.
func (s *Store) CreateAPIKey(ctx context.Context, key core.APIKey) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO api_keys (name, key, blocked, can_lock_utxo)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO NOTHING`,
		key.Name, key.Key, key.Blocked, key.CanLockUTXO)
	if err != nil {
		return utils.Wrap(err, "create api key")
	}
	return nil
}

// SetAPIKeyBlocked implements core.Store.
func (s *Store) SetAPIKeyBlocked(ctx context.Context, name string, blocked bool) error {
	_, err := s.pool.Exec(ctx, `UPDATE api_keys SET blocked = $2 WHERE name = $1`, name, blocked)
	if err != nil {
		return utils.Wrap(err, "set api key blocked")
	}
	return nil
}

// ListRunes implements core.Store.
func (s *Store) ListRunes(ctx context.Context, limit, offset uint32, order core.OrderBy, namePrefix string, featuredOnly bool) ([]core.Rune, uint64, error) {
	orderSQL := "DESC"
	if order == core.OrderAsc {
		orderSQL = "ASC"
	}

	where := "WHERE name ILIKE $1"
	args := []any{namePrefix + "%"}
	if featuredOnly {
		where += " AND is_featured"
	}

	var total uint64
	countSQL := fmt.Sprintf(`SELECT count(*) FROM runes %s`, where)
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, utils.Wrap(err, "count runes")
	}

	args = append(args, limit, offset)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT block, tx_index, rune_id, name, display_name, symbol, divisibility,
			max_supply, premine, minted, burned, in_circulation, mints, turbo,
			cenotaph_flag, block_time, etching_tx, commitment_tx, coalesce(is_featured, false)
		FROM runes %s
		ORDER BY block %s
		LIMIT $2 OFFSET $3
	`, where, orderSQL), args...)
	if err != nil {
		return nil, 0, utils.Wrap(err, "list runes")
	}
	defer rows.Close()

	var out []core.Rune
	for rows.Next() {
		r, err := scanRuneRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// GetOutputsByTx implements core.Store.
func (s *Store) GetOutputsByTx(ctx context.Context, txid core.Hash) ([]core.Output, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, block_height, tx_index_in_block, tx_hash, vout, address, amount_sats, coinbase_flag
		FROM outputs WHERE tx_hash = $1 ORDER BY vout ASC
	`, txid.Bytes())
	if err != nil {
		return nil, utils.Wrap(err, "get outputs by tx")
	}
	defer rows.Close()

	var out []core.Output
	for rows.Next() {
		o, err := scanOutputRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetInputsByTx implements core.Store.
func (s *Store) GetInputsByTx(ctx context.Context, txid core.Hash) ([]core.Input, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, block_height, tx_index_in_block, tx_hash, vin, parent_tx, parent_vout
		FROM inputs WHERE tx_hash = $1 ORDER BY vin ASC
	`, txid.Bytes())
	if err != nil {
		return nil, utils.Wrap(err, "get inputs by tx")
	}
	defer rows.Close()

	var out []core.Input
	for rows.Next() {
		var in core.Input
		var txHash, parentTx []byte
		if err := rows.Scan(&in.ID, &in.Block, &in.TxID, &txHash, &in.Vin, &parentTx, &in.ParentVout); err != nil {
			return nil, err
		}
		copy(in.TxHash[:], txHash)
		copy(in.ParentTx[:], parentTx)
		out = append(out, in)
	}
	return out, rows.Err()
}

// GetRuneUtxosByTx implements core.Store.
func (s *Store) GetRuneUtxosByTx(ctx context.Context, txid core.Hash) ([]core.RuneUtxo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, block, tx_index, tx_hash, vout, rune_name, rune_id, address, amount, btc_amount
		FROM rune_outputs WHERE tx_hash = $1 ORDER BY vout ASC
	`, txid.Bytes())
	if err != nil {
		return nil, utils.Wrap(err, "get rune utxos by tx")
	}
	defer rows.Close()

	var out []core.RuneUtxo
	for rows.Next() {
		u, err := scanRuneUtxoRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// GetBalanceHistory implements core.Store,
// reading the append-only ledger of per-block balance deltas.
func (s *Store) GetBalanceHistory(ctx context.Context, address string, limit, offset uint32) ([]core.BalanceHistoryEntry, uint64, error) {
	var total uint64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM balance_history WHERE address = $1`, address).Scan(&total); err != nil {
		return nil, 0, utils.Wrap(err, "count balance history")
	}

	rows, err := s.pool.Query(ctx, `
		SELECT block, delta_sats, balance_sats FROM balance_history
		WHERE address = $1 ORDER BY block DESC LIMIT $2 OFFSET $3
	`, address, limit, offset)
	if err != nil {
		return nil, 0, utils.Wrap(err, "get balance history")
	}
	defer rows.Close()

	var out []core.BalanceHistoryEntry
	for rows.Next() {
		var e core.BalanceHistoryEntry
		if err := rows.Scan(&e.Block, &e.Delta, &e.Balance); err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// GetRuneBalanceHistory is the rune-balance analogue of GetBalanceHistory.
func (s *Store) GetRuneBalanceHistory(ctx context.Context, address, rune string, limit, offset uint32) ([]core.RuneBalanceHistoryEntry, uint64, error) {
	var total uint64
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM rune_balance_history WHERE address = $1 AND rune_name = $2`, address, rune,
	).Scan(&total); err != nil {
		return nil, 0, utils.Wrap(err, "count rune balance history")
	}

	rows, err := s.pool.Query(ctx, `
		SELECT block, delta, balance FROM rune_balance_history
		WHERE address = $1 AND rune_name = $2 ORDER BY block DESC LIMIT $3 OFFSET $4
	`, address, rune, limit, offset)
	if err != nil {
		return nil, 0, utils.Wrap(err, "get rune balance history")
	}
	defer rows.Close()

	var out []core.RuneBalanceHistoryEntry
	for rows.Next() {
		var e core.RuneBalanceHistoryEntry
		var delta, balance string
		if err := rows.Scan(&e.Block, &delta, &balance); err != nil {
			return nil, 0, err
		}
		if e.Delta, err = core.ParseAmount(delta); err != nil {
			return nil, 0, err
		}
		if e.Balance, err = core.ParseAmount(balance); err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func scanRuneRow(row rowScanner) (core.Rune, error) {
	var r core.Rune
	var maxSupply, premine, minted, burned, inCirculation string
	var etchingTx, commitmentTx []byte
	if err := row.Scan(
		&r.Block, &r.TxID, &r.RuneIDStr, &r.Name, &r.DisplayName, &r.Symbol, &r.Divisibility,
		&maxSupply, &premine, &minted, &burned, &inCirculation, &r.Mints, &r.Turbo,
		&r.Cenotaph, &r.BlockTime, &etchingTx, &commitmentTx, &r.IsFeatured,
	); err != nil {
		return core.Rune{}, err
	}
	for _, pair := range []struct {
		dst *core.Amount
		src string
	}{{&r.MaxSupply, maxSupply}, {&r.Premine, premine}, {&r.Minted, minted}, {&r.Burned, burned}, {&r.InCirculation, inCirculation}} {
		amt, err := core.ParseAmount(pair.src)
		if err != nil {
			return core.Rune{}, err
		}
		*pair.dst = amt
	}
	copy(r.EtchingTx[:], etchingTx)
	copy(r.CommitmentTx[:], commitmentTx)
	return r, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutput(row rowScanner) (*core.Output, error) {
	var o core.Output
	var txHash []byte
	if err := row.Scan(&o.ID, &o.Block, &o.TxID, &txHash, &o.Vout, &o.Address, &o.Amount, &o.Coinbase); err != nil {
		return nil, err
	}
	copy(o.TxHash[:], txHash)
	return &o, nil
}

func scanOutputRows(row rowScanner) (core.Output, error) {
	o, err := scanOutput(row)
	if err != nil {
		return core.Output{}, err
	}
	return *o, nil
}

func scanRuneUtxo(row rowScanner) (*core.RuneUtxo, error) {
	var u core.RuneUtxo
	var txHash []byte
	var amountStr string
	if err := row.Scan(&u.ID, &u.Block, &u.TxID, &txHash, &u.Vout, &u.Rune, &u.RuneID, &u.Address, &amountStr, &u.BTCAmount); err != nil {
		return nil, err
	}
	copy(u.TxHash[:], txHash)
	amt, err := core.ParseAmount(amountStr)
	if err != nil {
		return nil, err
	}
	u.Amount = amt
	return &u, nil
}

func scanRuneUtxoRows(row rowScanner) (core.RuneUtxo, error) {
	u, err := scanRuneUtxo(row)
	if err != nil {
		return core.RuneUtxo{}, err
	}
	return *u, nil
}

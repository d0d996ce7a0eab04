package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/annel0/deepmine/internal/mining"
	_ "github.com/go-sql-driver/mysql"
)

// MariaProgressRepo реализует ProgressRepo для MariaDB/MySQL.
// Таблицы: player_progress (характеристики и валюта) и player_ores (инвентарь руды).
type MariaProgressRepo struct {
	db *sql.DB
}

// NewMariaProgressRepo подключается к базе и создаёт таблицы, если их нет.
//
// Параметры:
//
//	dsn - строка подключения (user:pass@tcp(host:port)/dbname?parseTime=true)
func NewMariaProgressRepo(ctx context.Context, dsn string) (*MariaProgressRepo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	repo := &MariaProgressRepo{db: db}
	if err := repo.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицы: %w", err)
	}
	return repo, nil
}

func (r *MariaProgressRepo) createTables(ctx context.Context) error {
	queries := []string{`
		CREATE TABLE IF NOT EXISTS player_progress (
			player_id         BIGINT UNSIGNED PRIMARY KEY,
			power             DOUBLE NOT NULL DEFAULT 0,
			damage_multiplier DOUBLE NOT NULL DEFAULT 1,
			tool_luck         DOUBLE NOT NULL DEFAULT 0,
			helper_luck_pct   DOUBLE NOT NULL DEFAULT 0,
			tool_speed_pct    DOUBLE NOT NULL DEFAULT 0,
			world_region      INT    NOT NULL DEFAULT 0,
			currency          BIGINT NOT NULL DEFAULT 0,
			updated_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			                  ON UPDATE CURRENT_TIMESTAMP
		) ENGINE=InnoDB`, `
		CREATE TABLE IF NOT EXISTS player_ores (
			player_id BIGINT UNSIGNED NOT NULL,
			ore       VARCHAR(32)     NOT NULL,
			amount    BIGINT          NOT NULL DEFAULT 0,
			PRIMARY KEY (player_id, ore)
		) ENGINE=InnoDB`,
	}
	for _, q := range queries {
		if _, err := r.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// Save использует INSERT ... ON DUPLICATE KEY UPDATE, валюта не меняется
func (r *MariaProgressRepo) Save(ctx context.Context, playerID uint64, p mining.Progress) error {
	query := `
		INSERT INTO player_progress
			(player_id, power, damage_multiplier, tool_luck, helper_luck_pct, tool_speed_pct, world_region)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			power = VALUES(power),
			damage_multiplier = VALUES(damage_multiplier),
			tool_luck = VALUES(tool_luck),
			helper_luck_pct = VALUES(helper_luck_pct),
			tool_speed_pct = VALUES(tool_speed_pct),
			world_region = VALUES(world_region)
	`
	_, err := r.db.ExecContext(ctx, query, playerID, p.Power, p.DamageMultiplier,
		p.ToolLuckBonus, p.HelperLuckBonusPercent, p.ToolSpeedBonusPercent, p.WorldRegion)
	if err != nil {
		return fmt.Errorf("ошибка сохранения прогресса игрока %d: %w", playerID, err)
	}
	return nil
}

func (r *MariaProgressRepo) Load(ctx context.Context, playerID uint64) (mining.Progress, bool, error) {
	p, _, err := r.loadRow(ctx, playerID)
	if err == sql.ErrNoRows {
		return mining.Progress{}, false, nil
	}
	if err != nil {
		return mining.Progress{}, false, fmt.Errorf("ошибка загрузки прогресса игрока %d: %w", playerID, err)
	}
	return p, true, nil
}

func (r *MariaProgressRepo) loadRow(ctx context.Context, playerID uint64) (mining.Progress, int, error) {
	query := `
		SELECT power, damage_multiplier, tool_luck, helper_luck_pct, tool_speed_pct, world_region, currency
		FROM player_progress WHERE player_id = ?`

	var p mining.Progress
	var currency int
	err := r.db.QueryRowContext(ctx, query, playerID).Scan(&p.Power, &p.DamageMultiplier,
		&p.ToolLuckBonus, &p.HelperLuckBonusPercent, &p.ToolSpeedBonusPercent, &p.WorldRegion, &currency)
	return p, currency, err
}

func (r *MariaProgressRepo) AddOre(ctx context.Context, playerID uint64, ore mining.OreType, amount int) error {
	query := `
		INSERT INTO player_ores (player_id, ore, amount) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE amount = amount + VALUES(amount)`
	if _, err := r.db.ExecContext(ctx, query, playerID, ore.String(), amount); err != nil {
		return fmt.Errorf("ошибка начисления руды игроку %d: %w", playerID, err)
	}
	return nil
}

func (r *MariaProgressRepo) AddCurrency(ctx context.Context, playerID uint64, amount int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE player_progress SET currency = currency + ? WHERE player_id = ?`, amount, playerID)
	if err != nil {
		return fmt.Errorf("ошибка начисления валюты игроку %d: %w", playerID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества затронутых строк: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("игрок %d: %w", playerID, ErrNotFound)
	}
	return nil
}

func (r *MariaProgressRepo) Get(ctx context.Context, playerID uint64) (ProgressRecord, error) {
	p, currency, err := r.loadRow(ctx, playerID)
	if err == sql.ErrNoRows {
		return ProgressRecord{}, ErrNotFound
	}
	if err != nil {
		return ProgressRecord{}, fmt.Errorf("ошибка загрузки игрока %d: %w", playerID, err)
	}

	rec := ProgressRecord{PlayerID: playerID, Progress: p, Currency: currency, Ores: make(map[string]int)}
	rows, err := r.db.QueryContext(ctx, `SELECT ore, amount FROM player_ores WHERE player_id = ?`, playerID)
	if err != nil {
		return ProgressRecord{}, fmt.Errorf("ошибка загрузки руды игрока %d: %w", playerID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var ore string
		var amount int
		if err := rows.Scan(&ore, &amount); err != nil {
			return ProgressRecord{}, err
		}
		rec.Ores[ore] = amount
	}
	return rec, rows.Err()
}

// Close закрывает соединение с базой данных.
func (r *MariaProgressRepo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

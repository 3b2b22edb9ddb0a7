package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"stars_referral_bot/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type User struct {
	TelegramID  int64         `db:"telegram_id"`
	Handle      string        `db:"handle"`
	DisplayName string        `db:"display_name"`
	ReferredBy  *int64        `db:"referred_by"`
	JoinTime    time.Time     `db:"join_time"`
	Referrals   pq.Int64Array `db:"referrals"`
}

type referrerStanding struct {
	TelegramID    int64     `db:"telegram_id"`
	Handle        string    `db:"handle"`
	DisplayName   string    `db:"display_name"`
	JoinTime      time.Time `db:"join_time"`
	ReferralCount int       `db:"referral_count"`
}

// A referral row is only inserted while the referrer exists; the unique
// referred_id column keeps each new user to a single edge.
const insertReferralQuery = `
	INSERT INTO referrals (referrer_id, referred_id, created_at)
	SELECT $1::bigint, $2::bigint, $3::timestamptz
	WHERE EXISTS (SELECT 1 FROM users WHERE telegram_id = $1::bigint)
	ON CONFLICT DO NOTHING`

func (r *Repository) GetOrCreate(ctx context.Context, telegramID int64, attrs model.UserAttributes) (model.User, bool, error) {
	var (
		user  *model.User
		isNew bool
	)

	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Insert("users").
			SetMap(map[string]interface{}{
				"telegram_id":  telegramID,
				"handle":       attrs.Handle,
				"display_name": attrs.DisplayName,
				"join_time":    r.now(),
			}).
			Suffix("ON CONFLICT (telegram_id) DO NOTHING").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build user insert query: %w", err)
		}

		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		isNew = rows == 1

		user, err = r.getUserWithTx(ctx, tx, telegramID)
		return err
	})
	if err != nil {
		return model.User{}, false, err
	}

	return *user, isNew, nil
}

func (r *Repository) Get(ctx context.Context, telegramID int64) (model.User, error) {
	query, args, err := userQuery(telegramID).ToSql()
	if err != nil {
		return model.User{}, err
	}

	var user User
	err = r.db.GetContext(ctx, &user, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user: %w", err)
	}

	return user.toModel(), nil
}

func (r *Repository) getUserWithTx(ctx context.Context, tx *sqlx.Tx, telegramID int64) (*model.User, error) {
	query, args, err := userQuery(telegramID).ToSql()
	if err != nil {
		return nil, err
	}

	var user User
	err = tx.GetContext(ctx, &user, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	out := user.toModel()
	return &out, nil
}

func (r *Repository) SetReferredBy(ctx context.Context, telegramID, referrerID int64) (bool, error) {
	query, args, err := squirrel.
		Update("users").
		Set("referred_by", referrerID).
		Where(squirrel.Eq{
			"telegram_id": telegramID,
			"referred_by": nil,
		}).
		Where(squirrel.NotEq{"telegram_id": referrerID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build referrer update query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to set referrer: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows == 1, nil
}

func (r *Repository) RecordReferral(ctx context.Context, referrerID, newUserID int64) (bool, error) {
	if referrerID == newUserID {
		return false, nil
	}

	result, err := r.db.ExecContext(ctx, insertReferralQuery, referrerID, newUserID, r.now())
	if err != nil {
		return false, fmt.Errorf("failed to record referral: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows == 1, nil
}

func (r *Repository) TopReferrers(ctx context.Context, limit int) ([]model.ReferrerStanding, error) {
	query, args, err := squirrel.
		Select(
			"u.telegram_id",
			"u.handle",
			"u.display_name",
			"u.join_time",
			"COUNT(r.id) AS referral_count",
		).
		From("users u").
		Join("referrals r ON r.referrer_id = u.telegram_id").
		GroupBy("u.telegram_id").
		OrderBy("referral_count DESC", "u.join_time ASC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var rows []referrerStanding
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get top referrers: %w", err)
	}

	standings := make([]model.ReferrerStanding, len(rows))
	for i, row := range rows {
		standings[i] = model.ReferrerStanding{
			TelegramID:    row.TelegramID,
			Handle:        row.Handle,
			DisplayName:   row.DisplayName,
			ReferralCount: row.ReferralCount,
			JoinTime:      row.JoinTime,
		}
	}

	return standings, nil
}

func userQuery(telegramID int64) squirrel.SelectBuilder {
	return squirrel.
		Select(
			"u.telegram_id",
			"u.handle",
			"u.display_name",
			"u.referred_by",
			"u.join_time",
			"COALESCE(array_agg(r.referred_id ORDER BY r.id) FILTER (WHERE r.referred_id IS NOT NULL), '{}') AS referrals",
		).
		From("users u").
		LeftJoin("referrals r ON r.referrer_id = u.telegram_id").
		Where(squirrel.Eq{"u.telegram_id": telegramID}).
		GroupBy("u.telegram_id").
		PlaceholderFormat(squirrel.Dollar)
}

func (u *User) toModel() model.User {
	referrals := make([]int64, len(u.Referrals))
	copy(referrals, u.Referrals)

	return model.User{
		TelegramID:  u.TelegramID,
		Handle:      u.Handle,
		DisplayName: u.DisplayName,
		ReferredBy:  u.ReferredBy,
		JoinTime:    u.JoinTime,
		Referrals:   referrals,
	}
}

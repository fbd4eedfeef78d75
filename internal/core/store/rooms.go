package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/quizai/quizai/internal/core"
)

const roomColumns = `id, host_id, code, title, active, questions, materials, config, created_at, updated_at`

// CreateRoom inserts a room. Join codes are unique.
func (s *Store) CreateRoom(ctx context.Context, room *core.Room) error {
	if s == nil || s.DB == nil {
		return ErrNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if room == nil || strings.TrimSpace(room.ID) == "" {
		return errors.New("room id is required")
	}

	questions, materials, cfg, err := encodeRoomDocs(room)
	if err != nil {
		return err
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO rooms (`+roomColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, room.ID, room.HostID, room.Code, room.Title, boolToInt(room.Active), questions, materials, cfg,
		room.CreatedAt.UTC().Unix(), room.UpdatedAt.UTC().Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("room code %s: %w", room.Code, core.ErrConflict)
		}
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

// GetRoom returns the room with the given id.
func (s *Store) GetRoom(ctx context.Context, id string) (*core.Room, error) {
	return s.findRoom(ctx, "id = ?", id)
}

// GetRoomByCode returns the room with the given join code.
func (s *Store) GetRoomByCode(ctx context.Context, code string) (*core.Room, error) {
	return s.findRoom(ctx, "code = ?", strings.ToUpper(strings.TrimSpace(code)))
}

func (s *Store) findRoom(ctx context.Context, where string, arg string) (*core.Room, error) {
	if s == nil || s.DB == nil {
		return nil, ErrNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE `+where, arg)
	room, err := scanRoom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("fetch room: %w", err)
	}
	return room, nil
}

// ListRooms returns rooms hosted by hostID, newest first.
func (s *Store) ListRooms(ctx context.Context, hostID string) ([]*core.Room, error) {
	if s == nil || s.DB == nil {
		return nil, ErrNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+roomColumns+`
		FROM rooms
		WHERE host_id = ?
		ORDER BY created_at DESC, id
	`, hostID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	rooms := []*core.Room{}
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rooms: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// UpdateRoom replaces the room's title, state, questions, materials, and config.
func (s *Store) UpdateRoom(ctx context.Context, room *core.Room) error {
	if s == nil || s.DB == nil {
		return ErrNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if room == nil {
		return errors.New("room is required")
	}

	questions, materials, cfg, err := encodeRoomDocs(room)
	if err != nil {
		return err
	}

	result, err := s.DB.ExecContext(ctx, `
		UPDATE rooms SET
			title = ?, active = ?, questions = ?, materials = ?, config = ?, updated_at = ?
		WHERE id = ?
	`, room.Title, boolToInt(room.Active), questions, materials, cfg, room.UpdatedAt.UTC().Unix(), room.ID)
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	return requireAffected(result, "update room")
}

// DeleteRoom removes a room and every submission made to it.
func (s *Store) DeleteRoom(ctx context.Context, id string) error {
	if s == nil || s.DB == nil {
		return ErrNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM submissions WHERE room_id = ?`, id); err != nil {
		return fmt.Errorf("delete room submissions: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	if err := requireAffected(result, "delete room"); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}

func encodeRoomDocs(room *core.Room) (string, string, string, error) {
	questions, err := encodeJSON(nonNilSlice(room.Questions))
	if err != nil {
		return "", "", "", err
	}
	materials, err := encodeJSON(nonNilSlice(room.Materials))
	if err != nil {
		return "", "", "", err
	}
	cfg, err := encodeJSON(room.Config)
	if err != nil {
		return "", "", "", err
	}
	return questions, materials, cfg, nil
}

func scanRoom(row rowScanner) (*core.Room, error) {
	var (
		room      core.Room
		questions string
		materials string
		cfg       string
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&room.ID, &room.HostID, &room.Code, &room.Title, &room.Active,
		&questions, &materials, &cfg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := decodeJSON(questions, &room.Questions); err != nil {
		return nil, err
	}
	if err := decodeJSON(materials, &room.Materials); err != nil {
		return nil, err
	}
	if err := decodeJSON(cfg, &room.Config); err != nil {
		return nil, err
	}
	room.CreatedAt = unixTime(createdAt)
	room.UpdatedAt = unixTime(updatedAt)
	return &room, nil
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

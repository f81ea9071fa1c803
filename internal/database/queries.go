package database

import (
	"context"
	"database/sql"
	"slices"
	"time"
)

const messageSelect = `
	SELECT m.id, m.room_id, r.external_id, m.account_id, a.username,
		m.type, m.content, m.reply_to_id,
		COALESCE(p.content, ''), COALESCE(pa.username, ''),
		m.edited, m.deleted, m.created_at, m.updated_at
	FROM messages m
	JOIN rooms r ON r.id = m.room_id
	JOIN accounts a ON a.id = m.account_id
	LEFT JOIN messages p ON p.id = m.reply_to_id
	LEFT JOIN accounts pa ON pa.id = p.account_id`

func scanMessage(row interface{ Scan(...any) error }) (Message, error) {
	var (
		msg       Message
		replyToId sql.NullInt64
	)

	err := row.Scan(
		&msg.Id,
		&msg.RoomId,
		&msg.RoomExternalId,
		&msg.AccountId,
		&msg.Username,
		&msg.Type,
		&msg.Content,
		&replyToId,
		&msg.ReplyContent,
		&msg.ReplyUsername,
		&msg.Edited,
		&msg.Deleted,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		return Message{}, err
	}

	if replyToId.Valid {
		id := int(replyToId.Int64)
		msg.ReplyToId = &id
	}

	return msg, nil
}

func (db *PgRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error) {
	res := db.conn.QueryRowContext(ctx,
		"INSERT INTO accounts (username, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING id, username, email",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var a Account
	err := res.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
	)

	return a, err
}

func (db *PgRepository) GetAccountById(ctx context.Context, accountId int) (Account, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, username, email, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		accountId,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgRepository) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, username, email, password_hash, created_at, updated_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.PasswordHash,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

// CreateRoom inserts the room and an admin membership for the owner in
// one transaction.
func (db *PgRepository) CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res := tx.QueryRowContext(ctx,
		"INSERT INTO rooms (external_id, name, visibility, capacity, active, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, TRUE, $5, $5) "+
			"RETURNING id, external_id, name, visibility, capacity, active, created_at, updated_at",
		params.ExternalId,
		params.Name,
		params.Visibility,
		params.Capacity,
		time.Now().UTC(),
	)

	var room Room
	err = res.Scan(
		&room.Id,
		&room.ExternalId,
		&room.Name,
		&room.Visibility,
		&room.Capacity,
		&room.Active,
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	if err != nil {
		return Room{}, err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO memberships (room_id, account_id, role, online, joined_at, last_seen_at) "+
			"VALUES ($1, $2, $3, FALSE, $4, $4)",
		room.Id,
		params.OwnerId,
		RoleAdmin,
		time.Now().UTC(),
	)
	if err != nil {
		return Room{}, err
	}

	if err = tx.Commit(); err != nil {
		return Room{}, err
	}

	return room, nil
}

func (db *PgRepository) GetRoomByExternalId(ctx context.Context, externalId string) (Room, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, external_id, name, visibility, capacity, active, created_at, updated_at "+
			"FROM rooms WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.ExternalId,
		&room.Name,
		&room.Visibility,
		&room.Capacity,
		&room.Active,
		&room.CreatedAt,
		&room.UpdatedAt,
	)

	return room, err
}

// TouchRoom bumps updated_at. Audit only, nothing orders on it.
func (db *PgRepository) TouchRoom(ctx context.Context, roomId int) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE rooms SET updated_at = $1 WHERE id = $2",
		time.Now().UTC(),
		roomId,
	)

	return err
}

func (db *PgRepository) CreateMembership(ctx context.Context, accountId, roomId int, role string) (Membership, error) {
	res := db.conn.QueryRowContext(ctx,
		"INSERT INTO memberships (room_id, account_id, role, online, joined_at, last_seen_at) "+
			"VALUES ($1, $2, $3, FALSE, $4, $4) RETURNING id, room_id, account_id, role, online, joined_at, last_seen_at",
		roomId,
		accountId,
		role,
		time.Now().UTC(),
	)

	var m Membership
	err := res.Scan(
		&m.Id,
		&m.RoomId,
		&m.AccountId,
		&m.Role,
		&m.Online,
		&m.JoinedAt,
		&m.LastSeenAt,
	)

	return m, err
}

func (db *PgRepository) GetMembership(ctx context.Context, accountId, roomId int) (Membership, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT m.id, m.room_id, m.account_id, a.username, m.role, m.online, m.joined_at, m.last_seen_at "+
			"FROM memberships m JOIN accounts a ON a.id = m.account_id "+
			"WHERE m.account_id = $1 AND m.room_id = $2 LIMIT 1",
		accountId,
		roomId,
	)

	var m Membership
	err := row.Scan(
		&m.Id,
		&m.RoomId,
		&m.AccountId,
		&m.Username,
		&m.Role,
		&m.Online,
		&m.JoinedAt,
		&m.LastSeenAt,
	)

	return m, err
}

func (db *PgRepository) ListRoomMembers(ctx context.Context, roomId int) ([]Membership, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT m.id, m.room_id, m.account_id, a.username, m.role, m.online, m.joined_at, m.last_seen_at "+
			"FROM memberships m JOIN accounts a ON a.id = m.account_id WHERE m.room_id = $1",
		roomId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Membership
	for rows.Next() {
		var m Membership
		if err = rows.Scan(&m.Id, &m.RoomId, &m.AccountId, &m.Username, &m.Role, &m.Online, &m.JoinedAt, &m.LastSeenAt); err != nil {
			return nil, err
		}

		members = append(members, m)
	}

	return members, rows.Err()
}

func (db *PgRepository) CountRoomMembers(ctx context.Context, roomId int) (int, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM memberships WHERE room_id = $1",
		roomId,
	)

	var count int
	err := row.Scan(&count)

	return count, err
}

// ListAccountRooms returns every room the account is a member of, with
// the number of messages from other senders not yet covered by a read
// receipt.
func (db *PgRepository) ListAccountRooms(ctx context.Context, accountId int) ([]RoomMembership, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT r.id, r.external_id, r.name, r.visibility, r.capacity, r.active,
			r.created_at, r.updated_at, m.role,
			(SELECT COUNT(*) FROM messages msg
				WHERE msg.room_id = r.id AND msg.deleted = FALSE AND msg.account_id <> $1
				AND NOT EXISTS (
					SELECT 1 FROM read_receipts rr
					WHERE rr.message_id = msg.id AND rr.account_id = $1
				)) AS unread
		FROM memberships m
		JOIN rooms r ON r.id = m.room_id
		WHERE m.account_id = $1 AND r.active = TRUE`,
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []RoomMembership
	for rows.Next() {
		var rm RoomMembership
		err = rows.Scan(
			&rm.Room.Id,
			&rm.Room.ExternalId,
			&rm.Room.Name,
			&rm.Room.Visibility,
			&rm.Room.Capacity,
			&rm.Room.Active,
			&rm.Room.CreatedAt,
			&rm.Room.UpdatedAt,
			&rm.Role,
			&rm.UnreadCount,
		)
		if err != nil {
			return nil, err
		}

		memberships = append(memberships, rm)
	}

	return memberships, rows.Err()
}

func (db *PgRepository) SetMembershipOnline(ctx context.Context, accountId, roomId int, online bool) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE memberships SET online = $3, last_seen_at = $4 WHERE account_id = $1 AND room_id = $2",
		accountId,
		roomId,
		online,
		time.Now().UTC(),
	)

	return err
}

func (db *PgRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO messages (room_id, account_id, type, content, reply_to_id, edited, deleted, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, FALSE, FALSE, $6, $6) RETURNING id",
		params.RoomId,
		params.AccountId,
		params.Type,
		params.Content,
		params.ReplyToId,
		time.Now().UTC(),
	)

	var id int
	if err := row.Scan(&id); err != nil {
		return Message{}, err
	}

	return db.GetMessage(ctx, id)
}

func (db *PgRepository) GetMessage(ctx context.Context, messageId int) (Message, error) {
	row := db.conn.QueryRowContext(ctx, messageSelect+" WHERE m.id = $1 LIMIT 1", messageId)
	return scanMessage(row)
}

func (db *PgRepository) UpdateMessageContent(ctx context.Context, messageId int, content string) (Message, error) {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE messages SET content = $2, edited = TRUE, updated_at = $3 WHERE id = $1 AND deleted = FALSE",
		messageId,
		content,
		time.Now().UTC(),
	)
	if err != nil {
		return Message{}, err
	}

	return db.GetMessage(ctx, messageId)
}

func (db *PgRepository) MarkMessageDeleted(ctx context.Context, messageId int) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE messages SET deleted = TRUE, updated_at = $2 WHERE id = $1 AND deleted = FALSE",
		messageId,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// ListRecentMessages returns up to limit undeleted messages for the
// room, newest last.
func (db *PgRepository) ListRecentMessages(ctx context.Context, roomId, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.conn.QueryContext(ctx,
		messageSelect+" WHERE m.room_id = $1 AND m.deleted = FALSE ORDER BY m.id DESC LIMIT $2",
		roomId,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]Message, 0, limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}

		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(messages)
	return messages, nil
}

// MarkRoomRead inserts a read receipt for every message in the room the
// account has not yet read, and reports how many were inserted.
func (db *PgRepository) MarkRoomRead(ctx context.Context, accountId, roomId int) (int, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO read_receipts (message_id, account_id, read_at)
		SELECT m.id, $1, $3 FROM messages m
		WHERE m.room_id = $2 AND m.deleted = FALSE AND m.account_id <> $1
		AND NOT EXISTS (
			SELECT 1 FROM read_receipts rr
			WHERE rr.message_id = m.id AND rr.account_id = $1
		)`,
		accountId,
		roomId,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, err
	}

	affected, err := res.RowsAffected()
	return int(affected), err
}

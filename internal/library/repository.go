package library

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type Repository interface {
	CreateFolder(ctx context.Context, folder *Folder) error
	GetFolder(ctx context.Context, id string) (*Folder, error)
	GetFolderByPath(ctx context.Context, path string) (*Folder, error)
	ListFolders(ctx context.Context) ([]*Folder, error)
	DeleteFolder(ctx context.Context, id string) error

	CreateVideo(ctx context.Context, video *Video) error
	GetVideo(ctx context.Context, id string) (*Video, error)
	GetVideoByPath(ctx context.Context, path string) (*Video, error)
	ListVideos(ctx context.Context) ([]*Video, error)
	ListVideosByFolder(ctx context.Context, folderID string) ([]*Video, error)
	UpdateVideoMedia(ctx context.Context, video *Video) error
	DeleteVideo(ctx context.Context, id string) error
	CountVideos(ctx context.Context) (int, error)

	ReplaceScenes(ctx context.Context, videoID string, scenes []*Scene) error
	ListScenes(ctx context.Context, videoID string) ([]*Scene, error)
	ListSelectedScenes(ctx context.Context, videoID string) ([]*Scene, error)
	GetScene(ctx context.Context, id string) (*Scene, error)
	GetSceneByNumber(ctx context.Context, videoID string, number int) (*Scene, error)
	SetSceneSelection(ctx context.Context, videoID string, numbers []int, selected bool) (int, error)
	SetAllSceneSelection(ctx context.Context, videoID string, selected bool) (int, error)
	UpdateSceneExport(ctx context.Context, sceneID, clipPath string) error
	UpdateSceneThumb(ctx context.Context, sceneID, thumbPath string) error
	DeleteScenes(ctx context.Context, videoID string) error
	CountScenes(ctx context.Context, videoID string) (int, error)

	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	ListPendingJobs(ctx context.Context) ([]*Job, error)
	UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateJobProgress(ctx context.Context, id string, progress int) error
	UpdateJobResult(ctx context.Context, id, result string) error
	HasActiveJob(ctx context.Context, jobType, videoID string) (bool, error)
	CountJobs(ctx context.Context, status string) (int, error)

	CreateEvent(ctx context.Context, event *Event) error
	ListEvents(ctx context.Context, limit int) ([]*Event, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateFolder(ctx context.Context, f *Folder) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO folders (id, path, display_name, watch, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, f.ID, f.Path, f.DisplayName, boolToInt(f.Watch), f.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetFolder(ctx context.Context, id string) (*Folder, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, path, display_name, watch, created_at
		FROM folders WHERE id = ?
	`, id)
	return r.scanFolder(row)
}

func (r *SQLiteRepository) GetFolderByPath(ctx context.Context, path string) (*Folder, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, path, display_name, watch, created_at
		FROM folders WHERE path = ?
	`, path)
	return r.scanFolder(row)
}

func (r *SQLiteRepository) scanFolder(row *sql.Row) (*Folder, error) {
	var f Folder
	var watch int
	var createdAt string

	err := row.Scan(&f.ID, &f.Path, &f.DisplayName, &watch, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	f.Watch = watch == 1
	f.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &f, nil
}

func (r *SQLiteRepository) ListFolders(ctx context.Context) ([]*Folder, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, path, display_name, watch, created_at
		FROM folders ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var folders []*Folder
	for rows.Next() {
		var f Folder
		var watch int
		var createdAt string

		if err := rows.Scan(&f.ID, &f.Path, &f.DisplayName, &watch, &createdAt); err != nil {
			return nil, err
		}
		f.Watch = watch == 1
		f.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		folders = append(folders, &f)
	}
	return folders, rows.Err()
}

func (r *SQLiteRepository) DeleteFolder(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM folders WHERE id = ?", id)
	return err
}

const videoColumns = `id, folder_id, path, display_name, size, mtime, fingerprint,
	duration_sec, fps, width, height, probe_error, imported_at, updated_at`

func (r *SQLiteRepository) CreateVideo(ctx context.Context, v *Video) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO videos (`+videoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, v.ID, nullString(v.FolderID), v.Path, v.DisplayName, v.Size, nullTime(v.Mtime), nullString(v.Fingerprint),
		v.Duration, v.FPS, v.Width, v.Height, nullString(v.ProbeError),
		v.ImportedAt.Format(time.RFC3339), v.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetVideo(ctx context.Context, id string) (*Video, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+videoColumns+` FROM videos WHERE id = ?
	`, id)
	return r.scanVideo(row)
}

func (r *SQLiteRepository) GetVideoByPath(ctx context.Context, path string) (*Video, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+videoColumns+` FROM videos WHERE path = ?
	`, path)
	return r.scanVideo(row)
}

func (r *SQLiteRepository) scanVideo(row *sql.Row) (*Video, error) {
	var v Video
	var folderID, mtime, fingerprint, probeError sql.NullString
	var importedAt, updatedAt string

	err := row.Scan(&v.ID, &folderID, &v.Path, &v.DisplayName, &v.Size, &mtime, &fingerprint,
		&v.Duration, &v.FPS, &v.Width, &v.Height, &probeError, &importedAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	v.FolderID = folderID.String
	v.Fingerprint = fingerprint.String
	v.ProbeError = probeError.String
	if mtime.Valid {
		v.Mtime, _ = time.Parse(time.RFC3339, mtime.String)
	}
	v.ImportedAt, _ = time.Parse(time.RFC3339, importedAt)
	v.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &v, nil
}

func (r *SQLiteRepository) scanVideos(rows *sql.Rows) ([]*Video, error) {
	var videos []*Video
	for rows.Next() {
		var v Video
		var folderID, mtime, fingerprint, probeError sql.NullString
		var importedAt, updatedAt string

		if err := rows.Scan(&v.ID, &folderID, &v.Path, &v.DisplayName, &v.Size, &mtime, &fingerprint,
			&v.Duration, &v.FPS, &v.Width, &v.Height, &probeError, &importedAt, &updatedAt); err != nil {
			return nil, err
		}
		v.FolderID = folderID.String
		v.Fingerprint = fingerprint.String
		v.ProbeError = probeError.String
		if mtime.Valid {
			v.Mtime, _ = time.Parse(time.RFC3339, mtime.String)
		}
		v.ImportedAt, _ = time.Parse(time.RFC3339, importedAt)
		v.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		videos = append(videos, &v)
	}
	return videos, rows.Err()
}

func (r *SQLiteRepository) ListVideos(ctx context.Context) ([]*Video, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+videoColumns+` FROM videos ORDER BY imported_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanVideos(rows)
}

func (r *SQLiteRepository) ListVideosByFolder(ctx context.Context, folderID string) ([]*Video, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+videoColumns+` FROM videos WHERE folder_id = ? ORDER BY display_name
	`, folderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanVideos(rows)
}

func (r *SQLiteRepository) UpdateVideoMedia(ctx context.Context, v *Video) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE videos SET size = ?, mtime = ?, fingerprint = ?, duration_sec = ?, fps = ?,
			width = ?, height = ?, probe_error = ?, updated_at = ?
		WHERE id = ?
	`, v.Size, nullTime(v.Mtime), nullString(v.Fingerprint), v.Duration, v.FPS,
		v.Width, v.Height, nullString(v.ProbeError), time.Now().UTC().Format(time.RFC3339), v.ID)
	return err
}

func (r *SQLiteRepository) DeleteVideo(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM videos WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) CountVideos(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM videos").Scan(&count)
	return count, err
}

const sceneColumns = `id, video_id, number, start_sec, end_sec, score, selected,
	clip_path, exported_at, thumb_path`

func (r *SQLiteRepository) ReplaceScenes(ctx context.Context, videoID string, scenes []*Scene) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM scenes WHERE video_id = ?", videoID); err != nil {
		return err
	}

	for _, s := range scenes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO scenes (`+sceneColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, s.ID, s.VideoID, s.Number, s.Start, s.End, s.Score, boolToInt(s.Selected),
			nullString(s.ClipPath), nullTime(s.ExportedAt), nullString(s.ThumbPath)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *SQLiteRepository) ListScenes(ctx context.Context, videoID string) ([]*Scene, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sceneColumns+` FROM scenes WHERE video_id = ? ORDER BY number
	`, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanScenes(rows)
}

func (r *SQLiteRepository) ListSelectedScenes(ctx context.Context, videoID string) ([]*Scene, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sceneColumns+` FROM scenes WHERE video_id = ? AND selected = 1 ORDER BY number
	`, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanScenes(rows)
}

func (r *SQLiteRepository) GetScene(ctx context.Context, id string) (*Scene, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sceneColumns+` FROM scenes WHERE id = ?
	`, id)
	return r.scanScene(row)
}

func (r *SQLiteRepository) GetSceneByNumber(ctx context.Context, videoID string, number int) (*Scene, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sceneColumns+` FROM scenes WHERE video_id = ? AND number = ?
	`, videoID, number)
	return r.scanScene(row)
}

func (r *SQLiteRepository) scanScene(row *sql.Row) (*Scene, error) {
	var s Scene
	var selected int
	var clipPath, exportedAt, thumbPath sql.NullString

	err := row.Scan(&s.ID, &s.VideoID, &s.Number, &s.Start, &s.End, &s.Score, &selected,
		&clipPath, &exportedAt, &thumbPath)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.Selected = selected == 1
	s.ClipPath = clipPath.String
	s.ThumbPath = thumbPath.String
	if exportedAt.Valid {
		s.ExportedAt, _ = time.Parse(time.RFC3339, exportedAt.String)
	}
	return &s, nil
}

func (r *SQLiteRepository) scanScenes(rows *sql.Rows) ([]*Scene, error) {
	var scenes []*Scene
	for rows.Next() {
		var s Scene
		var selected int
		var clipPath, exportedAt, thumbPath sql.NullString

		if err := rows.Scan(&s.ID, &s.VideoID, &s.Number, &s.Start, &s.End, &s.Score, &selected,
			&clipPath, &exportedAt, &thumbPath); err != nil {
			return nil, err
		}
		s.Selected = selected == 1
		s.ClipPath = clipPath.String
		s.ThumbPath = thumbPath.String
		if exportedAt.Valid {
			s.ExportedAt, _ = time.Parse(time.RFC3339, exportedAt.String)
		}
		scenes = append(scenes, &s)
	}
	return scenes, rows.Err()
}

func (r *SQLiteRepository) SetSceneSelection(ctx context.Context, videoID string, numbers []int, selected bool) (int, error) {
	if len(numbers) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(numbers)), ",")
	args := make([]any, 0, len(numbers)+2)
	args = append(args, boolToInt(selected), videoID)
	for _, n := range numbers {
		args = append(args, n)
	}

	res, err := r.db.ExecContext(ctx, fmt.Sprintf(
		"UPDATE scenes SET selected = ? WHERE video_id = ? AND number IN (%s)", placeholders), args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *SQLiteRepository) SetAllSceneSelection(ctx context.Context, videoID string, selected bool) (int, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE scenes SET selected = ? WHERE video_id = ?", boolToInt(selected), videoID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *SQLiteRepository) UpdateSceneExport(ctx context.Context, sceneID, clipPath string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE scenes SET clip_path = ?, exported_at = ? WHERE id = ?
	`, clipPath, time.Now().UTC().Format(time.RFC3339), sceneID)
	return err
}

func (r *SQLiteRepository) UpdateSceneThumb(ctx context.Context, sceneID, thumbPath string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE scenes SET thumb_path = ? WHERE id = ?
	`, thumbPath, sceneID)
	return err
}

func (r *SQLiteRepository) DeleteScenes(ctx context.Context, videoID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM scenes WHERE video_id = ?", videoID)
	return err
}

func (r *SQLiteRepository) CountScenes(ctx context.Context, videoID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM scenes WHERE video_id = ?", videoID).Scan(&count)
	return count, err
}

const jobColumns = `id, type, status, video_id, folder_id, payload, result, progress, error,
	created_at, updated_at`

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Type, j.Status, nullString(j.VideoID), nullString(j.FolderID),
		nullString(j.Payload), nullString(j.Result), j.Progress, nullString(j.Error),
		j.CreatedAt.Format(time.RFC3339), j.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE id = ?
	`, id)
	return r.scanJob(row)
}

func (r *SQLiteRepository) scanJob(row *sql.Row) (*Job, error) {
	var j Job
	var videoID, folderID, payload, result, errMsg sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&j.ID, &j.Type, &j.Status, &videoID, &folderID, &payload, &result,
		&j.Progress, &errMsg, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	j.VideoID = videoID.String
	j.FolderID = folderID.String
	j.Payload = payload.String
	j.Result = result.String
	j.Error = errMsg.String
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &j, nil
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanJobs(rows)
}

func (r *SQLiteRepository) ListPendingJobs(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE status = 'pending' ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanJobs(rows)
}

func (r *SQLiteRepository) scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		var j Job
		var videoID, folderID, payload, result, errMsg sql.NullString
		var createdAt, updatedAt string

		if err := rows.Scan(&j.ID, &j.Type, &j.Status, &videoID, &folderID, &payload, &result,
			&j.Progress, &errMsg, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		j.VideoID = videoID.String
		j.FolderID = folderID.String
		j.Payload = payload.String
		j.Result = result.String
		j.Error = errMsg.String
		j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

func (r *SQLiteRepository) UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, nullString(errorMsg), time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) UpdateJobProgress(ctx context.Context, id string, progress int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET progress = ?, updated_at = ? WHERE id = ?
	`, progress, time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) UpdateJobResult(ctx context.Context, id, result string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET result = ?, updated_at = ? WHERE id = ?
	`, nullString(result), time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) HasActiveJob(ctx context.Context, jobType, videoID string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM jobs WHERE type = ? AND video_id = ? AND status IN ('pending', 'running') LIMIT 1
	`, jobType, videoID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return exists == 1, nil
}

func (r *SQLiteRepository) CountJobs(ctx context.Context, status string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs WHERE status = ?", status).Scan(&count)
	return count, err
}

func (r *SQLiteRepository) CreateEvent(ctx context.Context, e *Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO events (id, action, video_id, detail, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.ID, e.Action, nullString(e.VideoID), nullString(e.Detail), e.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) ListEvents(ctx context.Context, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, action, video_id, detail, created_at
		FROM events ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var videoID, detail sql.NullString
		var createdAt string

		if err := rows.Scan(&e.ID, &e.Action, &videoID, &detail, &createdAt); err != nil {
			return nil, err
		}
		e.VideoID = videoID.String
		e.Detail = detail.String
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"noisewatch/internal/aggregation"
	"noisewatch/internal/escalation"
	"noisewatch/internal/models"
	"noisewatch/internal/observability"
	contextutils "noisewatch/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

const reportSelectFields = `id, user_id, media_reference, media_kind, reason, comment,
	location_lat, location_lng, location_address, geo_lng, geo_lat, noise_level,
	consecutive_days, status, admin_actions, version, created_at, updated_at`

// PostgresReportRepository implements ReportRepository on PostgreSQL
type PostgresReportRepository struct {
	db     *sql.DB
	logger *observability.Logger
}

var _ ReportRepository = (*PostgresReportRepository)(nil)

// NewPostgresReportRepository creates a new PostgreSQL report repository
func NewPostgresReportRepository(db *sql.DB, logger *observability.Logger) *PostgresReportRepository {
	return &PostgresReportRepository{db: db, logger: logger}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (*models.NoiseReport, error) {
	var (
		r         models.NoiseReport
		userID    sql.NullString
		locLat    sql.NullFloat64
		locLng    sql.NullFloat64
		locAddr   sql.NullString
		geoLng    float64
		geoLat    float64
		actionsJS []byte
	)
	err := row.Scan(
		&r.ID, &userID, &r.MediaReference, &r.MediaKind, &r.Reason, &r.Comment,
		&locLat, &locLng, &locAddr, &geoLng, &geoLat, &r.NoiseLevel,
		&r.ConsecutiveDays, &r.Status, &actionsJS, &r.Version, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		r.UserID = &userID.String
	}
	if locLat.Valid && locLng.Valid {
		r.Location = &models.Location{Latitude: locLat.Float64, Longitude: locLng.Float64, Address: locAddr.String}
	}
	r.Geo = models.NewGeoPoint(geoLng, geoLat)

	r.AdminActions = []models.AdminAction{}
	if len(actionsJS) > 0 {
		if err := json.Unmarshal(actionsJS, &r.AdminActions); err != nil {
			return nil, contextutils.WrapError(err, "failed to decode admin actions")
		}
	}
	return &r, nil
}

func scanReports(rows *sql.Rows) ([]models.NoiseReport, error) {
	reports := []models.NoiseReport{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

func nullableLocation(loc *models.Location) (lat, lng, addr interface{}) {
	if loc == nil {
		return nil, nil, nil
	}
	var address interface{}
	if loc.Address != "" {
		address = loc.Address
	}
	return loc.Latitude, loc.Longitude, address
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

// Create inserts a new report
func (r *PostgresReportRepository) Create(ctx context.Context, report *models.NoiseReport) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "create_report",
		observability.AttributeReportID(report.ID),
		observability.AttributeNoiseLevel(string(report.NoiseLevel)),
	)
	defer observability.FinishSpan(span, &err)

	if report.AdminActions == nil {
		report.AdminActions = []models.AdminAction{}
	}
	actions, err := json.Marshal(report.AdminActions)
	if err != nil {
		return contextutils.WrapError(err, "failed to encode admin actions")
	}

	lat, lng, addr := nullableLocation(report.Location)
	query := `INSERT INTO noise_reports (id, user_id, media_reference, media_kind, reason, comment,
		location_lat, location_lng, location_address, geo_lng, geo_lat, noise_level,
		consecutive_days, status, admin_actions, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = r.db.ExecContext(ctx, query,
		report.ID, nullableString(report.UserID), report.MediaReference, report.MediaKind, report.Reason, report.Comment,
		lat, lng, addr, report.Geo.Lng(), report.Geo.Lat(), report.NoiseLevel,
		report.ConsecutiveDays, report.Status, actions, report.Version, report.CreatedAt, report.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyError(err) {
			return contextutils.WrapError(contextutils.ErrForeignKeyViolation, "report references an unknown user")
		}
		return contextutils.WrapError(err, "failed to insert report")
	}
	return nil
}

// Get returns a report by id
func (r *PostgresReportRepository) Get(ctx context.Context, id string) (result *models.NoiseReport, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "get_report", observability.AttributeReportID(id))
	defer observability.FinishSpan(span, &err)

	if !isUUID(id) {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "report %s not found", id)
	}

	query := fmt.Sprintf("SELECT %s FROM noise_reports WHERE id = $1", reportSelectFields)
	result, err = scanReport(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "report %s not found", id)
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get report")
	}
	return result, nil
}

// List returns reports matching filter, newest first
func (r *PostgresReportRepository) List(ctx context.Context, filter models.ReportFilter) (result []models.NoiseReport, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "list_reports", observability.AttributeLimit(filter.Limit))
	defer observability.FinishSpan(span, &err)

	var (
		where []string
		args  []interface{}
	)
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != nil {
		add("status = $%d", string(*filter.Status))
	}
	if filter.NoiseLevel != nil {
		add("noise_level = $%d", string(*filter.NoiseLevel))
	}
	if filter.UserID != nil {
		if !isUUID(*filter.UserID) {
			return []models.NoiseReport{}, nil
		}
		add("user_id = $%d", *filter.UserID)
	}
	if filter.Since != nil {
		add("created_at >= $%d", *filter.Since)
	}

	query := fmt.Sprintf("SELECT %s FROM noise_reports", reportSelectFields)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to list reports")
	}
	defer func() { _ = rows.Close() }()

	return scanReports(rows)
}

// Nearby returns reports within radiusMeters of the point, nearest first. The gist index on
// point(geo_lng, geo_lat) serves the bounding-box prefilter; haversine decides the rest.
func (r *PostgresReportRepository) Nearby(ctx context.Context, lat, lng, radiusMeters float64, limit int) (result []models.NoiseReport, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "nearby_reports",
		attribute.Float64("geo.lat", lat),
		attribute.Float64("geo.lng", lng),
		attribute.Float64("geo.radius_m", radiusMeters),
	)
	defer observability.FinishSpan(span, &err)

	var (
		conditions []string
		args       []interface{}
	)
	for _, b := range aggregation.BoundingBoxes(lat, lng, radiusMeters) {
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("point(geo_lng, geo_lat) <@ box(point($%d, $%d), point($%d, $%d))", n+1, n+2, n+3, n+4))
		args = append(args, b.MinLng, b.MinLat, b.MaxLng, b.MaxLat)
	}
	query := fmt.Sprintf(`SELECT %s FROM noise_reports
		WHERE %s`, reportSelectFields, strings.Join(conditions, " OR "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query nearby reports")
	}
	defer func() { _ = rows.Close() }()

	candidates, err := scanReports(rows)
	if err != nil {
		return nil, err
	}
	return withinRadius(candidates, lat, lng, radiusMeters, limit), nil
}

func withinRadius(candidates []models.NoiseReport, lat, lng, radiusMeters float64, limit int) []models.NoiseReport {
	type scored struct {
		report   models.NoiseReport
		distance float64
	}
	var hits []scored
	for _, c := range candidates {
		if d := aggregation.HaversineMeters(lat, lng, c.Geo.Lat(), c.Geo.Lng()); d <= radiusMeters {
			hits = append(hits, scored{report: c, distance: d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].distance < hits[j].distance })

	out := []models.NoiseReport{}
	for _, h := range hits {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, h.report)
	}
	return out
}

// UpdateStatus locks the row, validates through check, and applies the transition in one transaction
func (r *PostgresReportRepository) UpdateStatus(ctx context.Context, change models.StatusChange, check StatusCheck) (result *models.NoiseReport, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "update_report_status",
		observability.AttributeReportID(change.ReportID),
		observability.AttributeStatus(string(change.Status)),
	)
	defer observability.FinishSpan(span, &err)

	if !isUUID(change.ReportID) {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "report %s not found", change.ReportID)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, contextutils.WrapError(contextutils.ErrDatabaseTransaction, "failed to begin transaction: "+err.Error())
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.logger.Warn(ctx, "Failed to rollback status transaction", map[string]interface{}{"error": rbErr.Error()})
			}
		}
	}()

	query := fmt.Sprintf("SELECT %s FROM noise_reports WHERE id = $1 FOR UPDATE", reportSelectFields)
	current, err := scanReport(tx.QueryRowContext(ctx, query, change.ReportID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "report %s not found", change.ReportID)
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to lock report")
	}

	if change.ExpectedVersion != 0 && change.ExpectedVersion != current.Version {
		return nil, contextutils.WrapErrorf(contextutils.ErrConflict, "report %s is at version %d, expected %d", change.ReportID, current.Version, change.ExpectedVersion)
	}

	action, err := check(current)
	if err != nil {
		return nil, err
	}

	entry, err := json.Marshal([]models.AdminAction{action})
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to encode admin action")
	}

	_, err = tx.ExecContext(ctx, `UPDATE noise_reports
		SET status = $2, admin_actions = admin_actions || $3::jsonb, version = version + 1, updated_at = $4
		WHERE id = $1`, change.ReportID, change.Status, entry, change.At)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to update report status")
	}

	if err = tx.Commit(); err != nil {
		return nil, contextutils.WrapError(contextutils.ErrDatabaseTransaction, "failed to commit status change: "+err.Error())
	}

	current.Status = change.Status
	current.AdminActions = append(current.AdminActions, action)
	current.Version++
	current.UpdatedAt = change.At
	return current, nil
}

// RaiseConsecutiveDays raises the counter of an unresolved report
func (r *PostgresReportRepository) RaiseConsecutiveDays(ctx context.Context, id string, days int, at time.Time) (changed bool, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "raise_consecutive_days",
		observability.AttributeReportID(id),
		attribute.Int("report.consecutive_days", days),
	)
	defer observability.FinishSpan(span, &err)

	res, err := r.db.ExecContext(ctx, `UPDATE noise_reports
		SET consecutive_days = $2, version = version + 1, updated_at = $3
		WHERE id = $1 AND consecutive_days < $2 AND status <> $4`, id, days, at, string(escalation.StatusResolved))
	if err != nil {
		return false, contextutils.WrapError(err, "failed to raise consecutive days")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, contextutils.WrapError(err, "failed to get rows affected")
	}
	return n > 0, nil
}

// Delete removes a report
func (r *PostgresReportRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "delete_report", observability.AttributeReportID(id))
	defer observability.FinishSpan(span, &err)

	if !isUUID(id) {
		return contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "report %s not found", id)
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM noise_reports WHERE id = $1`, id)
	if err != nil {
		return contextutils.WrapError(err, "failed to delete report")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to get rows affected")
	}
	if n == 0 {
		return contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "report %s not found", id)
	}
	return nil
}

// Analytics aggregates report counts with GROUP BY queries
func (r *PostgresReportRepository) Analytics(ctx context.Context, q AnalyticsQuery) (result *models.AnalyticsSummary, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "report_analytics")
	defer observability.FinishSpan(span, &err)

	summary := newSummary()

	if err := r.countInto(ctx, `SELECT status, COUNT(*) FROM noise_reports GROUP BY status`, summary.ByStatus); err != nil {
		return nil, err
	}
	if err := r.countInto(ctx, `SELECT noise_level, COUNT(*) FROM noise_reports GROUP BY noise_level`, summary.ByNoiseLevel); err != nil {
		return nil, err
	}
	for status, n := range summary.ByStatus {
		summary.TotalReports += n
		if escalation.IsOpen(escalation.Status(status)) {
			summary.OpenReports += n
		}
	}

	topN := q.TopN
	if topN <= 0 {
		topN = 5
	}
	rows, err := r.db.QueryContext(ctx, `SELECT LOWER(TRIM(reason)) AS r, COUNT(*) AS n FROM noise_reports
		GROUP BY r ORDER BY n DESC, r LIMIT $1`, topN)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to count reasons")
	}
	for rows.Next() {
		var rc models.ReasonCount
		if err := rows.Scan(&rc.Reason, &rc.Count); err != nil {
			_ = rows.Close()
			return nil, contextutils.WrapError(err, "failed to scan reason count")
		}
		summary.TopReasons = append(summary.TopReasons, rc)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, contextutils.WrapError(err, "failed to read reason counts")
	}
	_ = rows.Close()

	daily := map[string]int{}
	rows, err = r.db.QueryContext(ctx, `SELECT to_char(created_at AT TIME ZONE $1, 'YYYY-MM-DD') AS d, COUNT(*)
		FROM noise_reports WHERE created_at >= $2 GROUP BY d`, locationName(q.Location), q.Since)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to count daily reports")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var day string
		var n int
		if err := rows.Scan(&day, &n); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan daily count")
		}
		daily[day] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	summary.Daily = fillDailyGaps(daily, q.Since, time.Now(), q.Location)

	return summary, nil
}

func (r *PostgresReportRepository) countInto(ctx context.Context, query string, into map[string]int) error {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return contextutils.WrapError(err, "failed to count reports")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return contextutils.WrapError(err, "failed to scan report count")
		}
		into[key] = n
	}
	return rows.Err()
}

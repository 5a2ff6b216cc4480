package store

import (
	"context"
	"errors"
	"time"

	"noisewatch/internal/database"
	"noisewatch/internal/escalation"
	"noisewatch/internal/models"
	"noisewatch/internal/observability"
	contextutils "noisewatch/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/attribute"
)

// MongoReportRepository implements ReportRepository on a MongoDB collection
type MongoReportRepository struct {
	coll   *mongo.Collection
	logger *observability.Logger
}

var _ ReportRepository = (*MongoReportRepository)(nil)

// NewMongoReportRepository creates a report repository over db's noise_reports collection
func NewMongoReportRepository(db *mongo.Database, logger *observability.Logger) *MongoReportRepository {
	return &MongoReportRepository{coll: db.Collection(database.ReportsCollection), logger: logger}
}

func mongoSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	attrs = append(attrs, attribute.String("db.system", "mongodb"))
	ctx, span := observability.TraceDatabaseFunction(ctx, name, attrs...)
	return ctx, func(err *error) { observability.FinishSpan(span, err) }
}

// Create inserts a new report
func (r *MongoReportRepository) Create(ctx context.Context, report *models.NoiseReport) (err error) {
	ctx, finish := mongoSpan(ctx, "create_report", observability.AttributeReportID(report.ID))
	defer finish(&err)

	if report.AdminActions == nil {
		report.AdminActions = []models.AdminAction{}
	}
	if _, err = r.coll.InsertOne(ctx, report); err != nil {
		return contextutils.WrapError(err, "failed to insert report")
	}
	return nil
}

// Get returns a report by id
func (r *MongoReportRepository) Get(ctx context.Context, id string) (result *models.NoiseReport, err error) {
	ctx, finish := mongoSpan(ctx, "get_report", observability.AttributeReportID(id))
	defer finish(&err)

	var report models.NoiseReport
	err = r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&report)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "report %s not found", id)
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get report")
	}
	normalizeReport(&report)
	return &report, nil
}

func normalizeReport(report *models.NoiseReport) {
	if report.AdminActions == nil {
		report.AdminActions = []models.AdminAction{}
	}
}

func reportFilterDoc(filter models.ReportFilter) bson.M {
	doc := bson.M{}
	if filter.Status != nil {
		doc["status"] = *filter.Status
	}
	if filter.NoiseLevel != nil {
		doc["noiseLevel"] = *filter.NoiseLevel
	}
	if filter.UserID != nil {
		doc["userId"] = *filter.UserID
	}
	if filter.Since != nil {
		doc["createdAt"] = bson.M{"$gte": *filter.Since}
	}
	return doc
}

func (r *MongoReportRepository) findAll(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.NoiseReport, error) {
	cursor, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query reports")
	}
	defer func() { _ = cursor.Close(ctx) }()

	reports := []models.NoiseReport{}
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, contextutils.WrapError(err, "failed to decode reports")
	}
	for i := range reports {
		normalizeReport(&reports[i])
	}
	return reports, nil
}

// List returns reports matching filter, newest first
func (r *MongoReportRepository) List(ctx context.Context, filter models.ReportFilter) (result []models.NoiseReport, err error) {
	ctx, finish := mongoSpan(ctx, "list_reports", observability.AttributeLimit(filter.Limit))
	defer finish(&err)

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	return r.findAll(ctx, reportFilterDoc(filter), opts)
}

// Nearby uses the 2dsphere index; $nearSphere already orders by distance
func (r *MongoReportRepository) Nearby(ctx context.Context, lat, lng, radiusMeters float64, limit int) (result []models.NoiseReport, err error) {
	ctx, finish := mongoSpan(ctx, "nearby_reports",
		attribute.Float64("geo.lat", lat),
		attribute.Float64("geo.lng", lng),
		attribute.Float64("geo.radius_m", radiusMeters),
	)
	defer finish(&err)

	filter := bson.M{"geo": bson.M{"$nearSphere": bson.M{
		"$geometry":    bson.M{"type": models.GeoPointType, "coordinates": bson.A{lng, lat}},
		"$maxDistance": radiusMeters,
	}}}
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.findAll(ctx, filter, opts)
}

// UpdateStatus reads the report, runs check, then writes with a filter on the version it read.
// A concurrent writer makes the filter miss, which surfaces as ErrConflict.
func (r *MongoReportRepository) UpdateStatus(ctx context.Context, change models.StatusChange, check StatusCheck) (result *models.NoiseReport, err error) {
	ctx, finish := mongoSpan(ctx, "update_report_status",
		observability.AttributeReportID(change.ReportID),
		observability.AttributeStatus(string(change.Status)),
	)
	defer finish(&err)

	var current models.NoiseReport
	err = r.coll.FindOne(ctx, bson.M{"_id": change.ReportID}).Decode(&current)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "report %s not found", change.ReportID)
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to read report")
	}
	normalizeReport(&current)

	if change.ExpectedVersion != 0 && change.ExpectedVersion != current.Version {
		return nil, contextutils.WrapErrorf(contextutils.ErrConflict, "report %s is at version %d, expected %d", change.ReportID, current.Version, change.ExpectedVersion)
	}

	action, err := check(&current)
	if err != nil {
		return nil, err
	}

	update := bson.M{
		"$set":  bson.M{"status": change.Status, "updatedAt": change.At},
		"$push": bson.M{"adminActions": action},
		"$inc":  bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.NoiseReport
	err = r.coll.FindOneAndUpdate(ctx, bson.M{"_id": change.ReportID, "version": current.Version}, update, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, contextutils.WrapErrorf(contextutils.ErrConflict, "report %s changed during the update", change.ReportID)
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to update report status")
	}
	normalizeReport(&updated)
	return &updated, nil
}

// RaiseConsecutiveDays raises the counter of an unresolved report
func (r *MongoReportRepository) RaiseConsecutiveDays(ctx context.Context, id string, days int, at time.Time) (changed bool, err error) {
	ctx, finish := mongoSpan(ctx, "raise_consecutive_days",
		observability.AttributeReportID(id),
		attribute.Int("report.consecutive_days", days),
	)
	defer finish(&err)

	filter := bson.M{
		"_id":             id,
		"consecutiveDays": bson.M{"$lt": days},
		"status":          bson.M{"$ne": escalation.StatusResolved},
	}
	update := bson.M{
		"$set": bson.M{"consecutiveDays": days, "updatedAt": at},
		"$inc": bson.M{"version": 1},
	}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, contextutils.WrapError(err, "failed to raise consecutive days")
	}
	return res.ModifiedCount > 0, nil
}

// Delete removes a report
func (r *MongoReportRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, finish := mongoSpan(ctx, "delete_report", observability.AttributeReportID(id))
	defer finish(&err)

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return contextutils.WrapError(err, "failed to delete report")
	}
	if res.DeletedCount == 0 {
		return contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "report %s not found", id)
	}
	return nil
}

type groupCount struct {
	Key   string `bson:"_id"`
	Count int    `bson:"count"`
}

func (r *MongoReportRepository) groupCounts(ctx context.Context, pipeline mongo.Pipeline) ([]groupCount, error) {
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to aggregate reports")
	}
	defer func() { _ = cursor.Close(ctx) }()

	var out []groupCount
	if err := cursor.All(ctx, &out); err != nil {
		return nil, contextutils.WrapError(err, "failed to decode report counts")
	}
	return out, nil
}

func countBy(field string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$" + field}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
	}
}

// Analytics aggregates report counts with aggregation pipelines
func (r *MongoReportRepository) Analytics(ctx context.Context, q AnalyticsQuery) (result *models.AnalyticsSummary, err error) {
	ctx, finish := mongoSpan(ctx, "report_analytics")
	defer finish(&err)

	summary := newSummary()

	byStatus, err := r.groupCounts(ctx, countBy("status"))
	if err != nil {
		return nil, err
	}
	for _, g := range byStatus {
		summary.ByStatus[g.Key] = g.Count
		summary.TotalReports += g.Count
		if escalation.IsOpen(escalation.Status(g.Key)) {
			summary.OpenReports += g.Count
		}
	}

	byLevel, err := r.groupCounts(ctx, countBy("noiseLevel"))
	if err != nil {
		return nil, err
	}
	for _, g := range byLevel {
		summary.ByNoiseLevel[g.Key] = g.Count
	}

	topN := q.TopN
	if topN <= 0 {
		topN = 5
	}
	reasons, err := r.groupCounts(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$toLower", Value: bson.D{{Key: "$trim", Value: bson.D{{Key: "input", Value: "$reason"}}}}}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: topN}},
	})
	if err != nil {
		return nil, err
	}
	for _, g := range reasons {
		summary.TopReasons = append(summary.TopReasons, models.ReasonCount{Reason: g.Key, Count: g.Count})
	}

	days, err := r.groupCounts(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "createdAt", Value: bson.D{{Key: "$gte", Value: q.Since}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$dateToString", Value: bson.D{
				{Key: "format", Value: "%Y-%m-%d"},
				{Key: "date", Value: "$createdAt"},
				{Key: "timezone", Value: locationName(q.Location)},
			}}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return nil, err
	}
	daily := make(map[string]int, len(days))
	for _, g := range days {
		daily[g.Key] = g.Count
	}
	summary.Daily = fillDailyGaps(daily, q.Since, time.Now(), q.Location)

	return summary, nil
}

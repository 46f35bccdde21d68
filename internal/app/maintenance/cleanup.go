package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/macrame/admin/internal/models"
	"github.com/macrame/admin/internal/services"
	"github.com/macrame/admin/internal/tree"
	"github.com/macrame/admin/pkg/logger"
)

const (
	defaultPublishSpec    = "0 * * * * *"
	defaultPruneSpec      = "@daily"
	defaultIntegritySpec  = "@daily"
	defaultCachePurgeSpec = "@every 15m"
)

// Publisher switches scheduled pages live.
type Publisher interface {
	PublishDue(ctx context.Context) (int64, error)
}

// Purger drops expired cache entries.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Cleaner runs the periodic upkeep jobs: publishing scheduled pages, pruning
// attachments whose target row is gone, checking tree integrity and purging the
// database cache.
type Cleaner struct {
	db        *gorm.DB
	publisher Publisher
	purger    Purger
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger

	publishSchedule    string
	pruneSchedule      string
	integritySchedule  string
	cachePurgeSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock stamped on reports.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithPurger enables the cache purge job.
func WithPurger(p Purger) Option {
	return func(cleaner *Cleaner) {
		cleaner.purger = p
	}
}

// WithSchedules overrides the cron specifications. Blank specs disable the job.
func WithSchedules(publish, prune, integrity, cachePurge string) Option {
	return func(cleaner *Cleaner) {
		cleaner.publishSchedule = publish
		cleaner.pruneSchedule = prune
		cleaner.integritySchedule = integrity
		cleaner.cachePurgeSchedule = cachePurge
	}
}

// NewCleaner constructs a Cleaner with default schedules. A nil publisher skips the
// publish job. The cron parser accepts an optional seconds field.
func NewCleaner(db *gorm.DB, publisher Publisher, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:                 db,
		publisher:          publisher,
		now:                time.Now,
		log:                logger.WithModule("maintenance"),
		publishSchedule:    defaultPublishSpec,
		pruneSchedule:      defaultPruneSpec,
		integritySchedule:  defaultIntegritySpec,
		cachePurgeSchedule: defaultCachePurgeSpec,
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(
			cron.WithParser(cron.NewParser(cron.SecondOptional|cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
			cron.WithLogger(cron.DiscardLogger),
		)
	}
	return cleaner
}

// Start registers the jobs with the scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.db == nil {
		return errors.New("maintenance: db is required")
	}

	jobs := []struct {
		spec string
		name string
		run  func(context.Context) error
	}{
		{c.publishSchedule, "publish", c.publish},
		{c.pruneSchedule, "prune attachments", c.prune},
		{c.integritySchedule, "tree integrity", c.integrity},
		{c.cachePurgeSchedule, "cache purge", c.purgeCache},
	}

	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		job := job
		if _, err := c.cron.AddFunc(job.spec, func() {
			if err := job.run(context.Background()); err != nil {
				c.log.Warn("maintenance job failed", zap.String("job", job.name), zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("maintenance: schedule %s: %w", job.name, err)
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// Report summarises one maintenance run.
type Report struct {
	RanAt       time.Time    `json:"ran_at"`
	Published   int64        `json:"published"`
	Pruned      int64        `json:"pruned"`
	CachePurged int64        `json:"cache_purged"`
	Trees       []TreeHealth `json:"trees"`
}

// RunOnce executes every job sequentially and reports what changed. Errors of all jobs
// are returned together.
func (c *Cleaner) RunOnce(ctx context.Context) (Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	report := Report{RanAt: c.now()}
	if c.db == nil {
		return report, errors.New("maintenance: db is required")
	}

	var errs error
	if c.publisher != nil {
		published, err := c.publisher.PublishDue(ctx)
		report.Published = published
		errs = multierr.Append(errs, err)
	}

	pruned, err := PruneOrphanAttachments(ctx, c.db)
	report.Pruned = pruned
	errs = multierr.Append(errs, err)

	trees, err := CheckTrees(ctx, c.db)
	report.Trees = trees
	errs = multierr.Append(errs, err)

	if c.purger != nil {
		purged, err := c.purger.PurgeExpired(ctx)
		report.CachePurged = purged
		errs = multierr.Append(errs, err)
	}

	return report, errs
}

func (c *Cleaner) publish(ctx context.Context) error {
	if c.publisher == nil {
		return nil
	}
	published, err := c.publisher.PublishDue(ctx)
	if published > 0 {
		c.log.Info("scheduled pages published", zap.Int64("count", published))
	}
	return err
}

func (c *Cleaner) prune(ctx context.Context) error {
	pruned, err := PruneOrphanAttachments(ctx, c.db)
	if pruned > 0 {
		c.log.Info("orphaned attachments pruned", zap.Int64("count", pruned))
	}
	return err
}

func (c *Cleaner) integrity(ctx context.Context) error {
	trees, err := CheckTrees(ctx, c.db)
	for _, t := range trees {
		if len(t.Problems) > 0 {
			c.log.Error("broken tree hierarchy",
				zap.String("tree", t.Tree),
				zap.Int("nodes", t.Nodes),
				zap.Strings("problems", t.Problems),
			)
		}
	}
	return err
}

func (c *Cleaner) purgeCache(ctx context.Context) error {
	if c.purger == nil {
		return nil
	}
	_, err := c.purger.PurgeExpired(ctx)
	return err
}

// PruneOrphanAttachments deletes attachment rows whose target record or file no longer
// exists.
func PruneOrphanAttachments(ctx context.Context, db *gorm.DB) (int64, error) {
	if db == nil {
		return 0, errors.New("prune attachments: db is required")
	}

	var (
		total int64
		errs  error
	)
	for _, kind := range models.AttachableTypes {
		ids := db.Model(kind.Model()).Select("id")
		res := db.WithContext(ctx).
			Where("model_type = ? AND model_id NOT IN (?)", kind, ids).
			Delete(&models.FileAttachment{})
		if res.Error != nil {
			errs = multierr.Append(errs, fmt.Errorf("prune attachments: %s: %w", kind, res.Error))
			continue
		}
		total += res.RowsAffected
	}

	res := db.WithContext(ctx).
		Where("file_id NOT IN (?)", db.Model(&models.File{}).Select("id")).
		Delete(&models.FileAttachment{})
	if res.Error != nil {
		errs = multierr.Append(errs, fmt.Errorf("prune attachments: files: %w", res.Error))
	} else {
		total += res.RowsAffected
	}

	return total, errs
}

// TreeHealth describes the integrity of one tree.
type TreeHealth struct {
	Tree     string   `json:"tree"`
	Nodes    int      `json:"nodes"`
	Problems []string `json:"problems,omitempty"`
}

// CheckTrees validates the page tree, the nav tree and the item tree of every menu.
// Broken hierarchies are reported in the result; the error only carries failures to
// load a tree.
func CheckTrees(ctx context.Context, db *gorm.DB) ([]TreeHealth, error) {
	if db == nil {
		return nil, errors.New("check trees: db is required")
	}

	var (
		out  []TreeHealth
		errs error
	)
	add := func(health TreeHealth, err error) {
		if err != nil {
			errs = multierr.Append(errs, err)
			return
		}
		out = append(out, health)
	}

	add(checkTree(ctx, tree.NewStore[models.Page](db, "pages"), "pages"))
	add(checkTree(ctx, tree.NewStore[models.NavItem](db, "nav_items"), "nav_items"))

	var menus []models.Menu
	if err := db.WithContext(ctx).Order("title ASC").Find(&menus).Error; err != nil {
		return out, multierr.Append(errs, fmt.Errorf("check trees: load menus: %w", err))
	}
	items := tree.NewStore[models.MenuItem](db, "menu_items")
	for _, menu := range menus {
		menuID := menu.ID
		scoped := items.WithScope(func(q *gorm.DB) *gorm.DB { return q.Where("menu_id = ?", menuID) })
		add(checkTree(ctx, scoped, "menu:"+menu.Key))
	}
	return out, errs
}

func checkTree[E any, P tree.Record[E]](ctx context.Context, store *tree.Store[E, P], label string) (TreeHealth, error) {
	forest, err := store.Forest(ctx)
	if err != nil {
		return TreeHealth{}, fmt.Errorf("check trees: load %s: %w", label, err)
	}
	health := TreeHealth{Tree: label, Nodes: forest.Len()}
	for _, problem := range multierr.Errors(forest.Validate()) {
		health.Problems = append(health.Problems, problem.Error())
	}
	return health, nil
}

var _ Publisher = (*services.PageService)(nil)

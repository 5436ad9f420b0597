package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	_ "modernc.org/sqlite"

	"respite/internal/core/model"
)

const dayLayout = "2006-01-02"

// ErrUnknownCounter is returned for a break counter that is not tracked.
var ErrUnknownCounter = errors.New("unknown break counter")

// Counter names a per break statistic.
type Counter string

const (
	CounterPrompted  Counter = "prompted"
	CounterUnique    Counter = "unique_breaks"
	CounterTaken     Counter = "taken"
	CounterNatural   Counter = "natural_breaks"
	CounterSkipped   Counter = "skipped"
	CounterPostponed Counter = "postponed"
	CounterForced    Counter = "forced"
)

var counters = []Counter{
	CounterPrompted, CounterUnique, CounterTaken, CounterNatural,
	CounterSkipped, CounterPostponed, CounterForced,
}

// BreakStats are the counters of one break on one day.
type BreakStats map[Counter]int64

// ActivityStats summarize input on one day.
type ActivityStats struct {
	Active        time.Duration
	Keystrokes    int64
	MouseClicks   int64
	MouseMovement int64
}

// Day is the statistics of a calendar day.
type Day struct {
	Date     time.Time
	Breaks   map[model.BreakID]BreakStats
	Activity ActivityStats
}

// Store keeps daily statistics in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the statistics database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create statistics directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open statistics database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping statistics database: %w", err)
	}

	store := &Store{db: db, path: path}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate statistics database: %w", err)
	}
	return store, nil
}

// Close closes the database.
func (store *Store) Close() error {
	return store.db.Close()
}

func (store *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS break_stats (
		day TEXT NOT NULL,
		break TEXT NOT NULL,
		prompted INTEGER NOT NULL DEFAULT 0,
		unique_breaks INTEGER NOT NULL DEFAULT 0,
		taken INTEGER NOT NULL DEFAULT 0,
		natural_breaks INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		postponed INTEGER NOT NULL DEFAULT 0,
		forced INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (day, break)
	);
	CREATE TABLE IF NOT EXISTS activity_stats (
		day TEXT PRIMARY KEY,
		active_seconds INTEGER NOT NULL DEFAULT 0,
		keystrokes INTEGER NOT NULL DEFAULT 0,
		mouse_clicks INTEGER NOT NULL DEFAULT 0,
		mouse_movement INTEGER NOT NULL DEFAULT 0
	);`
	_, err := store.db.Exec(schema)
	return err
}

// AddBreak increments a break counter for the day of at.
func (store *Store) AddBreak(ctx context.Context, at time.Time, id model.BreakID, counter Counter, delta int64) error {
	if !validCounter(counter) {
		return fmt.Errorf("%w: %s", ErrUnknownCounter, counter)
	}
	query := fmt.Sprintf(`
	INSERT INTO break_stats (day, break, %[1]s) VALUES (?, ?, ?)
	ON CONFLICT(day, break) DO UPDATE SET %[1]s = %[1]s + excluded.%[1]s`, counter)
	if _, err := store.db.ExecContext(ctx, query, at.Format(dayLayout), id.Name(), delta); err != nil {
		return fmt.Errorf("add %s for %s: %w", counter, id, err)
	}
	return nil
}

// AddActivity adds sample to the activity totals of the day of at.
func (store *Store) AddActivity(ctx context.Context, at time.Time, sample ActivityStats) error {
	_, err := store.db.ExecContext(ctx, `
	INSERT INTO activity_stats (day, active_seconds, keystrokes, mouse_clicks, mouse_movement)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(day) DO UPDATE SET
		active_seconds = active_seconds + excluded.active_seconds,
		keystrokes = keystrokes + excluded.keystrokes,
		mouse_clicks = mouse_clicks + excluded.mouse_clicks,
		mouse_movement = mouse_movement + excluded.mouse_movement`,
		at.Format(dayLayout), int64(sample.Active/time.Second), sample.Keystrokes, sample.MouseClicks, sample.MouseMovement)
	if err != nil {
		return fmt.Errorf("add activity: %w", err)
	}
	return nil
}

// Daily returns the statistics of the day containing date. Missing rows read as zero.
func (store *Store) Daily(ctx context.Context, date time.Time) (Day, error) {
	key := date.Format(dayLayout)
	day := Day{Breaks: map[model.BreakID]BreakStats{}}
	day.Date, _ = time.ParseInLocation(dayLayout, key, date.Location())
	for _, id := range model.AllBreaks {
		day.Breaks[id] = BreakStats{}
	}

	rows, err := store.db.QueryContext(ctx, `
	SELECT break, prompted, unique_breaks, taken, natural_breaks, skipped, postponed, forced
	FROM break_stats WHERE day = ?`, key)
	if err != nil {
		return day, fmt.Errorf("query break stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		values := make([]int64, len(counters))
		targets := []any{&name}
		for i := range values {
			targets = append(targets, &values[i])
		}
		if err := rows.Scan(targets...); err != nil {
			return day, fmt.Errorf("scan break stats: %w", err)
		}
		id, ok := model.ParseBreakID(name)
		if !ok {
			continue
		}
		for i, counter := range counters {
			day.Breaks[id][counter] = values[i]
		}
	}
	if err := rows.Err(); err != nil {
		return day, fmt.Errorf("iterate break stats: %w", err)
	}

	var activeSeconds int64
	err = store.db.QueryRowContext(ctx, `
	SELECT active_seconds, keystrokes, mouse_clicks, mouse_movement
	FROM activity_stats WHERE day = ?`, key).
		Scan(&activeSeconds, &day.Activity.Keystrokes, &day.Activity.MouseClicks, &day.Activity.MouseMovement)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return day, fmt.Errorf("query activity stats: %w", err)
	}
	day.Activity.Active = time.Duration(activeSeconds) * time.Second
	return day, nil
}

// Days lists the days with recorded statistics, newest first.
func (store *Store) Days(ctx context.Context) ([]time.Time, error) {
	rows, err := store.db.QueryContext(ctx, `
	SELECT day FROM break_stats UNION SELECT day FROM activity_stats ORDER BY day DESC`)
	if err != nil {
		return nil, fmt.Errorf("query days: %w", err)
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan day: %w", err)
		}
		day, err := time.ParseInLocation(dayLayout, key, time.Local)
		if err != nil {
			continue
		}
		days = append(days, day)
	}
	return days, rows.Err()
}

func validCounter(counter Counter) bool {
	return slices.Contains(counters, counter)
}

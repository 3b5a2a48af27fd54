// Package testutil holds fixtures shared by the service test suites.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"jornada/pkg/db"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dsnReplacer = strings.NewReplacer("/", "_", " ", "_", "#", "_")

// NewTestDB opens a shared-cache sqlite database named after the running test,
// migrates models into it and closes it on cleanup. The pool is pinned to one
// connection, so code under test must not read through the root handle while
// holding a transaction.
func NewTestDB(t testing.TB, models ...any) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", dsnReplacer.Replace(t.Name()))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: db.NewZapGormLogger(zaptest.NewLogger(t), logger.Error, false),
	})
	require.NoError(t, err, "open sqlite")

	if len(models) > 0 {
		require.NoError(t, gdb.AutoMigrate(models...), "migrate")
	}

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() { _ = sqlDB.Close() })

	return gdb
}

func NewNode(t testing.TB) *snowflake.Node {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

// Clock is a settable time source for services that take a func() time.Time.
type Clock struct {
	now time.Time
}

func NewClock(now time.Time) *Clock { return &Clock{now: now} }

func (c *Clock) Now() time.Time { return c.now }

func (c *Clock) Set(now time.Time) { c.now = now }

func (c *Clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

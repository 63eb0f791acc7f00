// Package cli команды клиента shoetrack на cobra.
//
// Команды не знают о конкретном хранилище и транспорте: все зависимости
// собирает Setup после разбора флагов, поэтому в тестах их легко подменить.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/shoetrack/internal/client/auth"
	"github.com/iudanet/shoetrack/internal/client/connectivity"
	"github.com/iudanet/shoetrack/internal/client/dashboard"
	"github.com/iudanet/shoetrack/internal/client/data"
	"github.com/iudanet/shoetrack/internal/client/iocli"
	"github.com/iudanet/shoetrack/internal/client/store"
	"github.com/iudanet/shoetrack/internal/client/sync"
	"github.com/iudanet/shoetrack/internal/models"
)

// ConflictResolver список и разрешение конфликтов
type ConflictResolver interface {
	List(ctx context.Context) ([]*models.Conflict, error)
	Resolve(ctx context.Context, id string, choice models.Resolution) (*models.Conflict, error)
}

// DashboardBuilder построитель сводки
type DashboardBuilder interface {
	Build(ctx context.Context) (*dashboard.Dashboard, error)
}

// StatsSource статистика локального кэша
type StatsSource interface {
	Stats(ctx context.Context) (*store.Stats, error)
}

// UsageSource размер файла хранилища
type UsageSource interface {
	Usage(ctx context.Context) (size, limit int64, err error)
}

// Monitor монитор связи
type Monitor interface {
	State() connectivity.State
	Reachability() float64
	Probe(ctx context.Context) connectivity.State
	OnChange(fn func(prev, next connectivity.State))
	OnReconnect(fn func())
	Run(ctx context.Context)
}

// Cli зависимости команд
type Cli struct {
	IO        iocli.IO
	Auth      auth.Service
	Data      data.Service
	Sync      sync.Service
	Conflicts ConflictResolver
	Dashboard DashboardBuilder
	Stats     StatsSource
	Usage     UsageSource
	Monitor   Monitor
	Now       func() time.Time
}

func (c *Cli) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Setup собирает зависимости для запущенной команды. Closer освобождает
// хранилище после выполнения.
type Setup func(cmd *cobra.Command) (*Cli, io.Closer, error)

// App дерево команд и собранные для него зависимости
type App struct {
	root   *cobra.Command
	setup  Setup
	cli    *Cli
	closer io.Closer
}

// New создает приложение с корневой командой shoetrack
func New(setup Setup) *App {
	a := &App{setup: setup}

	a.root = &cobra.Command{
		Use:           "shoetrack",
		Short:         "Track running shoes and runs, offline first",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !needsSetup(cmd) {
				return nil
			}
			c, closer, err := a.setup(cmd)
			if err != nil {
				return err
			}
			a.cli, a.closer = c, closer
			return nil
		},
	}

	a.root.AddCommand(
		a.newRegisterCmd(),
		a.newLoginCmd(),
		a.newLogoutCmd(),
		a.newCollectionCmd(),
		a.newShoeCmd(),
		a.newRunCmd(),
		a.newDashboardCmd(),
		a.newStatusCmd(),
		a.newSyncCmd(),
		a.newForceSyncCmd(),
		a.newPullCmd(),
		a.newConflictsCmd(),
		a.newResolveCmd(),
		a.newErrorsCmd(),
		a.newStatsCmd(),
		a.newWatchCmd(),
	)
	return a
}

// Command корневая команда, к ней добавляются глобальные флаги
func (a *App) Command() *cobra.Command {
	return a.root
}

// Execute выполняет команду и закрывает зависимости, в том числе при ошибке
func (a *App) Execute(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	err := a.root.ExecuteContext(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	return err
}

// needsSetup справка и автодополнение работают без хранилища
func needsSetup(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return false
		}
	}
	return true
}

func (a *App) close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

package main

import (
	"context"
	"flag"
	"log"
	"time"

	"jornada/pkg/config"
	"jornada/pkg/db"
	"jornada/pkg/gen"
	"jornada/pkg/logger"
	"jornada/pkg/redis"
	"jornada/pkg/sequence"
	"jornada/services/actionlog"
	"jornada/services/project"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var actions = []struct {
	title    string
	category string
}{
	{"Leve sua garrafa reutilizável", "consumo"},
	{"Desligue luzes de ambientes vazios", "energia"},
	{"Separe o lixo reciclável", "residuos"},
	{"Use escadas em vez do elevador", "saude"},
	{"Imprima apenas o necessário", "consumo"},
	{"Venha de transporte coletivo ou bicicleta", "mobilidade"},
	{"Desligue equipamentos da tomada ao sair", "energia"},
	{"Reduza o tempo de banho", "agua"},
	{"Traga sua marmita", "consumo"},
	{"Doe algo que não usa mais", "comunidade"},
	{"Plante ou cuide de uma planta", "natureza"},
	{"Recuse copos descartáveis", "residuos"},
	{"Compartilhe uma carona", "mobilidade"},
	{"Faça uma reunião sem papel", "consumo"},
	{"Descarte pilhas corretamente", "residuos"},
	{"Feche a torneira ao escovar os dentes", "agua"},
	{"Compre de um produtor local", "comunidade"},
	{"Aproveite a luz natural", "energia"},
	{"Conserte em vez de descartar", "consumo"},
	{"Ensine uma prática sustentável a um colega", "comunidade"},
	{"Registre sua maior conquista da jornada", "reflexao"},
}

func main() {
	name := flag.String("name", "Jornada Sustentável", "project name")
	start := flag.String("start", time.Now().Format(time.DateOnly), "start date (YYYY-MM-DD)")
	migrate := flag.Bool("migrate", true, "create tables before seeding")
	flag.Parse()

	startDate, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		log.Fatalf("invalid -start: %v", err)
	}

	app := fx.New(
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		sequence.Module,
		gen.Module,
		project.Module,
		fx.Invoke(func(lc fx.Lifecycle, conn *gorm.DB, svc *project.Service, shutdowner fx.Shutdowner) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					if *migrate {
						if err := conn.WithContext(ctx).AutoMigrate(&project.Project{}, &project.DayTemplate{}); err != nil {
							return err
						}
					}
					if err := seed(ctx, svc, *name, startDate); err != nil {
						return err
					}
					return shutdowner.Shutdown()
				},
			})
		}),
		fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
	)

	app.Run()
}

func seed(ctx context.Context, svc *project.Service, name string, start time.Time) error {
	templates := make([]project.TemplateInput, 0, len(actions))
	for i, a := range actions {
		templates = append(templates, project.TemplateInput{
			DayNumber:     i + 1,
			Title:         a.title,
			Category:      a.category,
			Points:        actionlog.BasePoints,
			RequiresPhoto: a.category == "natureza" || a.category == "comunidade",
		})
	}

	p, err := svc.Create(ctx, project.CreateProjectRequest{
		Name:      name,
		StartDate: &start,
		TotalDays: project.DefaultTotalDays,
		Templates: templates,
	})
	if err != nil {
		return err
	}

	zap.L().Info("seeded project",
		zap.String("project_id", p.ID),
		zap.String("code", p.Code),
		zap.Time("start_date", start),
		zap.Int("days", p.TotalDays),
	)
	return nil
}

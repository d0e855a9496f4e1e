package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/decidiu/plataforma/internal/db"
	"github.com/decidiu/plataforma/internal/repo"
	"github.com/decidiu/plataforma/internal/service"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	_ = godotenv.Load()

	ctx := context.Background()

	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		log.Fatal().Msg("defina DB_DSN ou DATABASE_URL")
	}

	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("não foi possível conectar ao banco")
	}
	defer pool.Close()

	if err := db.Migrate(pool); err != nil {
		log.Fatal().Err(err).Msg("falha ao aplicar migrações")
	}

	store := service.NewPgStore(pool)
	passwords := service.NewPasswordManager(service.DefaultPasswordPolicy)
	audit := service.NewAuditLogger(store, 100, 1000)
	engine := service.NewRoleSyncEngine(store, audit, passwords)

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "bootstrap-admin":
		if err := runBootstrap(ctx, store, engine, args); err != nil {
			log.Fatal().Err(err).Msg("falha ao criar administrador")
		}
	case "list":
		if err := runList(ctx, store, args); err != nil {
			log.Fatal().Err(err).Msg("falha ao listar usuários")
		}
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usuarios CLI")
	fmt.Fprintln(os.Stderr, "uso:")
	fmt.Fprintln(os.Stderr, "  usuarios bootstrap-admin --name \"Administradora\" --email admin@saude.gov.br --cpf 00000000000 --password 'Senha#Forte1' [--birth-date 1980-01-31]")
	fmt.Fprintln(os.Stderr, "  usuarios list [--role Administrator] [--status active] [--search maria]")
}

// runBootstrap cria o primeiro administrador pelo mesmo fluxo de criação da API.
func runBootstrap(ctx context.Context, store service.Store, engine *service.RoleSyncEngine, args []string) error {
	fs := flag.NewFlagSet("bootstrap-admin", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		name      = fs.String("name", "", "nome completo")
		email     = fs.String("email", "", "email institucional")
		cpf       = fs.String("cpf", "", "CPF (login)")
		password  = fs.String("password", "", "senha inicial (troca obrigatória no primeiro acesso)")
		birthDate = fs.String("birth-date", "", "data de nascimento (AAAA-MM-DD), usada na recuperação")
	)

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *name == "" || *email == "" || *cpf == "" || *password == "" {
		return errors.New("name, email, cpf e password são obrigatórios")
	}

	_, total, err := store.Read().ListUsuarios(ctx, repo.UsuarioFilter{Cargo: repo.RoleAdministrator, Limit: 1})
	if err != nil {
		return err
	}
	if total > 0 {
		return errors.New("já existe administrador cadastrado")
	}

	created, err := engine.CreateUser(ctx, service.CreateUserInput{
		FullName:   *name,
		Email:      *email,
		NationalID: *cpf,
		BirthDate:  *birthDate,
		Role:       string(repo.RoleAdministrator),
		Password:   *password,
	})
	if err != nil {
		return err
	}

	output, _ := json.MarshalIndent(created.User, "", "  ")
	fmt.Println(string(output))
	return nil
}

func runList(ctx context.Context, store service.Store, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		role   = fs.String("role", "", "filtra por cargo")
		status = fs.String("status", "", "filtra por status")
		search = fs.String("search", "", "busca por nome, email ou CPF")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	filter := repo.UsuarioFilter{Search: strings.TrimSpace(*search), Limit: 1000}
	if *role != "" {
		r, err := repo.ParseRole(*role)
		if err != nil {
			return err
		}
		filter.Cargo = r
	}
	if *status != "" {
		s, err := repo.ParseStatus(*status)
		if err != nil {
			return err
		}
		filter.Status = s
	}

	users, _, err := store.Read().ListUsuarios(ctx, filter)
	if err != nil {
		return err
	}

	if len(users) == 0 {
		fmt.Println("nenhum usuário cadastrado")
		return nil
	}

	encoded, _ := json.MarshalIndent(users, "", "  ")
	fmt.Println(string(encoded))
	return nil
}

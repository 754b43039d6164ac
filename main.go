package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/abiosoft/ishell"
	"github.com/asdine/storm/v3"
	"github.com/caarlos0/env/v6"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/cablebotics/gocablebot/comms"
	"github.com/cablebotics/gocablebot/robot"
)

type EnvConfig struct {
	JWT_ISSUER string `env:"GATEWAY_ID" envDefault:"DEV"`
	JWT_SECRET string `env:"JWT_SECRET" envDefault:"dev-only-secret-change-me"`
	PROD       bool   `env:"PROD" envDefault:"0"`
	DEBUG      bool   `env:"DEBUG" envDefault:"0"`
	SRCDIR     string `env:"SRCDIR" envDefault:"."`
	HTMLDIR    string `env:"HTMLDIR" envDefault:"./frontend/dist/"`
	DB         *storm.DB
	Hub        *comms.Hub
	Conductor  *comms.Conductor
	Simulated  bool
}

var (
	ENV *EnvConfig
)

func init() {
	ENV = new(EnvConfig)
	env.Parse(ENV)

	// operator db path depends on the deployment
	var dbFile string
	if ENV.PROD {
		dbFile = "/data/live.db"
	} else {
		dbFile, _ = filepath.Abs("./tmp/dev.db")
		dir := filepath.Dir(dbFile)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			os.Mkdir(dir, 0755)
		}
	}

	db, err := openDb(dbFile)
	if err != nil {
		panic(err)
	}
	ENV.DB = db
}

func main() {
	simulated := flag.Bool("sim", false, "Run against a simulated controller instead of real hardware")
	port := flag.String("port", "0.0.0.0:8080", "Specify the ip:port to listen on")
	flag.Parse()

	defer ENV.DB.Close()

	var filename string
	var err error
	if ENV.PROD {
		filename = "/data/robot_config.yaml"
	} else {
		filename, err = filepath.Abs(ENV.SRCDIR + "/robot_config.yaml")
		if err != nil {
			panic(err)
		}
	}

	config, err := robot.LoadConfig(filename)
	if err != nil {
		panic(fmt.Sprintf("Unable to load robot config: %v", err))
	}

	// Assemble the core: shared state, hardware link, controller, hub.
	ENV.Simulated = *simulated
	state := robot.NewState(config.HomeVec())

	var link robot.Link
	if ENV.Simulated {
		println("Creating simulated controller")
		link = robot.NewSimulatedLink(state, config.HomeVec())
	} else {
		link = robot.NewSerialLink(config, state)
	}

	controller := robot.NewController(config, state, link)
	ENV.Hub = comms.NewHub(state)
	ENV.Conductor = &comms.Conductor{Robot: controller, Hub: ENV.Hub}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	broadcaster := &comms.Broadcaster{
		State:    state,
		Hub:      ENV.Hub,
		Interval: comms.RateToInterval(config.PositionRate),
	}
	go broadcaster.Run(ctx)

	startShell(controller)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.RedirectSlashes)
	r.Use(middleware.Recoverer) // make sure this is last

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", Login)

		r.Route("/", func(r chi.Router) {
			r.Use(ValidateJWT)
			r.Get("/refresh_token", JWTRefresh)
		})
	})

	r.Route("/ws", func(r chi.Router) {
		if ENV.PROD && !ENV.DEBUG {
			r.Use(ValidateJWT)
		} else {
			fmt.Println("Running in debug mode. Authentication disabled.")
		}

		r.Get("/robot", RobotHandler)
	})

	FileServer(r, "/", http.Dir(ENV.HTMLDIR))

	srv := &http.Server{Addr: *port, Handler: r}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	fmt.Println("Listening on", *port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}

	// listener is down by now; stop the reader loop and release the port
	if err := link.Close(); err != nil {
		log.Printf("closing hardware link: %v", err)
	}
}

// startShell attaches the development shell to stdin.
func startShell(controller *robot.Controller) {
	shell := ishell.New()
	shell.Println("Cable robot development shell")
	shell.ShowPrompt(true)

	shell.AddCmd(&ishell.Cmd{
		Name: "createsuperuser",
		Help: "createsuperuser <email> <password>",
		Func: func(c *ishell.Context) {
			c.ShowPrompt(false)
			defer c.ShowPrompt(true)

			var email string
			if len(c.Args) >= 1 {
				email = c.Args[0]
			} else {
				c.Print("Email: ")
				email = c.ReadLine()
			}

			var password string
			if len(c.Args) >= 2 {
				password = c.Args[1]
			} else {
				c.Print("Password: ")
				password = c.ReadPassword()
			}

			operator := &Operator{
				Email: email,
				Name:  email,
				Admin: true,
			}
			operator.SetPassword([]byte(password))
			if err := ENV.DB.Save(operator); err != nil {
				c.Err(err)
				return
			}

			c.Println("Superuser created")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "activate",
		Help: "arm the motion system",
		Func: func(c *ishell.Context) {
			if err := controller.Activate(); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "deactivate",
		Help: "disarm the motion system",
		Func: func(c *ishell.Context) {
			controller.Deactivate()
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "move",
		Help: "move <x> <y> <z>",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 3 {
				c.Err(errors.New("usage: move <x> <y> <z>"))
				return
			}
			x, _ := strconv.ParseFloat(c.Args[0], 64)
			y, _ := strconv.ParseFloat(c.Args[1], 64)
			z, _ := strconv.ParseFloat(c.Args[2], 64)
			c.Printf("Moving to (%.3f, %.3f, %.3f)\n", x, y, z)
			if err := controller.MoveTo(x, y, z); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "home",
		Help: "move to the configured home position",
		Func: func(c *ishell.Context) {
			if err := controller.Home(); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "estop",
		Help: "emergency stop",
		Func: func(c *ishell.Context) {
			controller.EmergencyStop()
			c.Println("Emergency stop latched")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "calibrate",
		Help: "start hardware calibration",
		Func: func(c *ishell.Context) {
			if err := controller.Calibrate(); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "pos",
		Help: "request a position report",
		Func: func(c *ishell.Context) {
			if err := controller.QueryPosition(); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "status",
		Help: "print the current state snapshot",
		Func: func(c *ishell.Context) {
			c.Printf("%+v\n", controller.Status())
		},
	})

	go shell.Start()
}

func openDb(dbFile string) (db *storm.DB, err error) {
	db, err = storm.Open(dbFile)
	if err != nil {
		return
	}

	if err := db.Init(&Operator{}); err != nil {
		return nil, err
	}

	return
}

// FileServer conveniently sets up a http.FileServer handler to serve
// static files from a http.FileSystem.
func FileServer(r chi.Router, path string, root http.FileSystem) {
	if strings.ContainsAny(path, "{}*") {
		panic("FileServer does not permit URL parameters.")
	}

	fs := http.StripPrefix(path, http.FileServer(root))

	if path != "/" && path[len(path)-1] != '/' {
		r.Get(path, http.RedirectHandler(path+"/", 301).ServeHTTP)
		path += "/"
	}
	path += "*"

	r.Get(path, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.ServeHTTP(w, r)
	}))
}

package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/mcoot/guessduel-go/internal/bot"
	"github.com/mcoot/guessduel-go/internal/dependencies/random"
	"github.com/mcoot/guessduel-go/internal/model"
)

const writeWait = 5 * time.Second

type playOptions struct {
	username string
	roomID   string
	create   bool
	bot      string
}

func newPlayCmd() *cobra.Command {
	var opts playOptions

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Log in and play a game",
		Long: `Connect to the room service, log in and play a game interactively.

Without --create or --room you are asked whether to create or join a room.
When it is your turn, type a number and press enter. Press Ctrl+C to leave;
leaving a running game forfeits it.

With --bot the guesses are made automatically using the named strategy
(bisect or random).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(opts.username) == "" {
				return errors.New("--username is required")
			}
			if opts.create && opts.roomID != "" {
				return errors.New("--create and --room are mutually exclusive")
			}

			var strategy bot.Strategy
			if opts.bot != "" {
				s, err := bot.New(opts.bot, random.New())
				if err != nil {
					return err
				}
				strategy = s
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return play(ctx, opts, strategy, cmd.InOrStdin(), NewOutput(cfg.Output, cmd.OutOrStdout()))
		},
	}

	cmd.Flags().StringVarP(&opts.username, "username", "u", "", "Username to log in with (required)")
	cmd.Flags().StringVar(&opts.roomID, "room", "", "Join this room instead of asking")
	cmd.Flags().BoolVar(&opts.create, "create", false, "Create a new room instead of asking")
	cmd.Flags().StringVar(&opts.bot, "bot", "", "Guess automatically with this strategy: bisect, random")

	return cmd
}

// serverMessage is any message sent by the room service
type serverMessage struct {
	Type              string   `json:"type"`
	UserID            string   `json:"userId"`
	Username          string   `json:"username"`
	RoomID            string   `json:"roomId"`
	Players           []string `json:"players"`
	CurrentTurnUserID string   `json:"currentTurnUserId"`
	SecretRange       [2]int   `json:"secretRange"`
	PlayerID          string   `json:"playerId"`
	Guess             int      `json:"guess"`
	Result            string   `json:"result"`
	NextTurnUserID    string   `json:"nextTurnUserId"`
	WinnerUserID      string   `json:"winnerUserId"`
	Status            string   `json:"status"`
	Error             string   `json:"error"`
	Code              string   `json:"code"`

	raw json.RawMessage
}

// awaiting is the kind of input the session is waiting for
type awaiting int

const (
	awaitNothing awaiting = iota
	awaitChoice
	awaitRoomID
	awaitGuess
)

type session struct {
	conn *websocket.Conn
	out  *Output
	opts playOptions

	// strategy guesses instead of the player when set
	strategy bot.Strategy
	bounds   bot.Bounds

	userID   string
	roomID   string
	awaiting awaiting
	lastSent string
}

func play(ctx context.Context, opts playOptions, strategy bot.Strategy, in io.Reader, out *Output) error {
	wsURL, err := client.WebSocketURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", wsURL, err)
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	msgs := make(chan serverMessage)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			var msg serverMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			msg.raw = data
			select {
			case msgs <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	s := &session{conn: conn, out: out, opts: opts, strategy: strategy}
	if err := s.send(map[string]any{"type": "login", "username": opts.username}); err != nil {
		return err
	}

	for {
		// Input is only consumed when a prompt is open
		var input <-chan string
		if s.awaiting != awaitNothing {
			input = lines
		}

		select {
		case <-ctx.Done():
			s.say("Leaving.")
			return nil
		case err := <-readErr:
			return fmt.Errorf("connection closed: %w", err)
		case msg := <-msgs:
			done, err := s.handle(msg)
			if err != nil || done {
				return err
			}
		case line, ok := <-input:
			if !ok {
				s.say("Input closed, leaving.")
				return nil
			}
			if err := s.input(line); err != nil {
				return err
			}
		}
	}
}

// handle reacts to one server message. done reports the end of the game.
func (s *session) handle(msg serverMessage) (done bool, err error) {
	if s.out.JSON() {
		s.out.Print(msg.raw)
	}

	switch msg.Type {
	case "login_success":
		s.userID = msg.UserID
		s.say("Logged in as %s (id %s)", msg.Username, msg.UserID)
		return false, s.chooseRoom()

	case "room_joined":
		s.roomID = msg.RoomID
		s.say("Room %s, players: %s", msg.RoomID, strings.Join(msg.Players, ", "))
		if len(msg.Players) < 2 {
			s.say("Waiting for an opponent to join room %s...", msg.RoomID)
		}

	case "game_started":
		s.bounds = bot.NewBounds(msg.SecretRange)
		s.say("Game started! The secret is between %d and %d.", msg.SecretRange[0], msg.SecretRange[1])
		return false, s.promptGuessIfMine(msg.CurrentTurnUserID)

	case "guess_result":
		who := "Opponent"
		if msg.PlayerID == s.userID {
			who = "You"
		}
		s.bounds = s.bounds.Observe(msg.Guess, model.GuessResult(msg.Result))
		s.say("%s guessed %d: %s", who, msg.Guess, describeResult(msg.Result))
		if msg.Status == "finished" {
			if msg.WinnerUserID == s.userID {
				s.say("You won!")
			} else {
				s.say("You lost.")
			}
			return true, nil
		}
		return false, s.promptGuessIfMine(msg.NextTurnUserID)

	case "game_forfeited":
		if msg.WinnerUserID == s.userID {
			s.say("Your opponent left. You win!")
		} else {
			s.say("You forfeited the game.")
		}
		return true, nil

	case "room_abandoned":
		s.say("Room %s was abandoned.", msg.RoomID)
		return true, nil

	case "error":
		return false, s.handleError(msg)
	}

	return false, nil
}

func (s *session) handleError(msg serverMessage) error {
	s.say("Error: %s", msg.Error)

	if msg.Code == "AUTH_REQUIRED" {
		return errors.New(msg.Error)
	}

	switch s.lastSent {
	case "login":
		return errors.New(msg.Error)
	case "join_room", "create_room":
		if s.lastSent == "create_room" && s.roomID != "" {
			// A failed start in our own room; keep waiting
			return nil
		}
		if s.opts.create || s.opts.roomID != "" {
			return errors.New(msg.Error)
		}
		s.prompt(awaitChoice, "Create a room or join one? [c/j]: ")
	case "guess":
		if msg.Code == "MALFORMED_INPUT" {
			s.prompt(awaitGuess, "Your guess: ")
		}
	}
	return nil
}

func (s *session) input(line string) error {
	current := s.awaiting
	s.awaiting = awaitNothing

	switch current {
	case awaitChoice:
		switch strings.ToLower(line) {
		case "c", "create":
			return s.send(map[string]any{"type": "create_room"})
		case "j", "join":
			s.prompt(awaitRoomID, "Room ID: ")
		default:
			s.prompt(awaitChoice, "Please type c or j: ")
		}
	case awaitRoomID:
		if line == "" {
			s.prompt(awaitRoomID, "Room ID: ")
			return nil
		}
		return s.send(map[string]any{"type": "join_room", "roomId": line})
	case awaitGuess:
		if line == "" {
			s.prompt(awaitGuess, "Your guess: ")
			return nil
		}
		return s.send(map[string]any{"type": "guess", "roomId": s.roomID, "guess": line})
	}
	return nil
}

func (s *session) chooseRoom() error {
	switch {
	case s.opts.create:
		return s.send(map[string]any{"type": "create_room"})
	case s.opts.roomID != "":
		return s.send(map[string]any{"type": "join_room", "roomId": s.opts.roomID})
	default:
		s.prompt(awaitChoice, "Create a room or join one? [c/j]: ")
		return nil
	}
}

func (s *session) promptGuessIfMine(turn string) error {
	switch {
	case turn != s.userID:
		s.say("Waiting for your opponent...")
	case s.strategy != nil:
		guess := s.strategy.Choose(s.bounds)
		s.say("Bot guesses %d", guess)
		return s.send(map[string]any{"type": "guess", "roomId": s.roomID, "guess": guess})
	default:
		s.prompt(awaitGuess, "Your guess: ")
	}
	return nil
}

func (s *session) prompt(next awaiting, msg string) {
	s.awaiting = next
	s.out.Prompt(msg)
}

func (s *session) send(v map[string]any) error {
	s.lastSent, _ = v["type"].(string)
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := s.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("send %s: %w", s.lastSent, err)
	}
	return nil
}

// say prints a line for humans; JSON output only carries server messages
func (s *session) say(format string, args ...any) {
	if !s.out.JSON() {
		s.out.PrintMessage(fmt.Sprintf(format, args...))
	}
}

func describeResult(result string) string {
	switch result {
	case "too_low":
		return "too low"
	case "too_high":
		return "too high"
	case "correct":
		return "correct!"
	default:
		return result
	}
}

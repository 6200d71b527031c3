package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"olive-mapper/internal/logger"
	"olive-mapper/internal/prefs"
	"olive-mapper/internal/slot"
	"olive-mapper/internal/stats"
	"olive-mapper/internal/store"
)

func prompt(r *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	s, _ := r.ReadString('\n')
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

func main() {
	var envFile string
	for i := 1; i < len(os.Args); i++ {
		if os.Args[i] == "--env" && i+1 < len(os.Args) {
			envFile = os.Args[i+1]
			i++
		} else if strings.HasSuffix(os.Args[i], ".env") {
			envFile = os.Args[i]
		}
	}
	if envFile != "" {
		_ = godotenv.Load(envFile)
	} else {
		r := bufio.NewReader(os.Stdin)
		fmt.Println("输入槽位参数，回车使用默认值")
		_ = os.Setenv("SLOT_DRIVER", prompt(r, "SLOT_DRIVER", "sqlite"))
		switch os.Getenv("SLOT_DRIVER") {
		case "sqlite":
			_ = os.Setenv("SLOT_SQLITE_PATH", prompt(r, "SLOT_SQLITE_PATH", "data/olive.db"))
		case "file":
			_ = os.Setenv("SLOT_FILE_DIR", prompt(r, "SLOT_FILE_DIR", "data/slots"))
		}
	}
	// 日志默认丢弃，避免打断交互输出；TREE_CLI_LOG 指定时追加写入该文件
	var logOut io.Writer = io.Discard
	if path := os.Getenv("TREE_CLI_LOG"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Println("log error:", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	logger.SetupWriter(logOut)
	ctx := context.Background()
	sl, err := slot.Open(ctx)
	if err != nil {
		fmt.Println("slot error:", err)
		os.Exit(1)
	}
	defer sl.Close()
	st := store.New(sl)
	st.Restore(ctx)
	sess := &session{
		store: st,
		stats: stats.NewEngine(os.Getenv("OLIVE_LOCALE")),
		prefs: prefs.New(sl),
		now:   time.Now,
		out:   os.Stdout,
	}
	fmt.Printf("olive tree cli ready (%d trees)\n", st.Len())
	sess.help()
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !in.Scan() {
			break
		}
		if quit := sess.exec(ctx, in.Text()); quit {
			return
		}
	}
}

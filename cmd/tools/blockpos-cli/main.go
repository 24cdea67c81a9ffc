package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/annel0/blockpos/internal/blockpos"
	"github.com/annel0/blockpos/internal/config"
	"github.com/annel0/blockpos/internal/locator"
	"github.com/annel0/blockpos/internal/snapshot"
	"github.com/annel0/blockpos/internal/storage"
	"github.com/annel0/blockpos/internal/terrain"
)

func main() {
	var (
		command    = flag.String("cmd", "pack", "Command: pack, unpack, box, shell, nearest, export, import, generate")
		configPath = flag.String("config", "", "YAML config for storage-backed commands")
		x          = flag.Int("x", 0, "X coordinate (pack)")
		y          = flag.Int("y", 0, "Y coordinate (pack)")
		z          = flag.Int("z", 0, "Z coordinate (pack)")
		word       = flag.String("word", "", "Packed word (unpack)")
		posFlag    = flag.String("pos", "0,0,0", "Center position x,y,z (shell, nearest)")
		boxFlag    = flag.String("box", "", "Box x1,y1,z1:x2,y2,z2 (box, export, generate)")
		layers     = flag.Bool("layers", false, "Walk the box layer by layer (box)")
		rx         = flag.Int("rx", 1, "X range (shell)")
		ry         = flag.Int("ry", 1, "Y range (shell)")
		rz         = flag.Int("rz", 1, "Z range (shell)")
		hr         = flag.Int("h", 16, "Horizontal range (nearest)")
		vr         = flag.Int("v", 8, "Vertical range (nearest)")
		block      = flag.Uint("block", uint(storage.Stone), "Block id (nearest)")
		file       = flag.String("file", "region.bps", "Snapshot file (export, import)")
		limit      = flag.Int("limit", 100, "Maximum number of printed points")
	)
	flag.Parse()

	ctx := context.Background()

	switch *command {
	case "pack":
		p := blockpos.NewPos(int32(*x), int32(*y), int32(*z))
		fmt.Printf("%d\n", p.Pack())
		if !blockpos.Representable(p) {
			fmt.Fprintf(os.Stderr, "⚠️  %v вне упаковываемого диапазона, распакуется как %v\n", p, blockpos.FromPacked(p.Pack()))
		}

	case "unpack":
		w, err := strconv.ParseInt(*word, 10, 64)
		if err != nil {
			log.Fatalf("❌ Unpack failed: %v", err)
		}
		fmt.Println(blockpos.FromPacked(w).ShortString())

	case "box":
		box, err := blockpos.ParseBox(*boxFlag)
		if err != nil {
			log.Fatalf("❌ Box failed: %v", err)
		}
		it := box.Iterate()
		if *layers {
			it = box.IterateLayers()
		}
		printPoints(it.Next, it.Current, *limit)
		fmt.Printf("# %d points\n", it.Len())

	case "shell":
		center, err := blockpos.ParsePos(*posFlag)
		if err != nil {
			log.Fatalf("❌ Shell failed: %v", err)
		}
		it := blockpos.IterateOutwards(center, *rx, *ry, *rz)
		printPoints(it.Next, it.Current, *limit)

	case "nearest":
		center, err := blockpos.ParsePos(*posFlag)
		if err != nil {
			log.Fatalf("❌ Nearest failed: %v", err)
		}
		withStore(ctx, *configPath, func(store storage.BlockStore) error {
			loc := locator.New(store, nil)
			found, ok, err := loc.FindNearestHV(ctx, center, *hr, *vr, storage.BlockID(*block))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("not found")
				return nil
			}
			fmt.Println(found.ShortString())
			return nil
		})

	case "export":
		box, err := blockpos.ParseBox(*boxFlag)
		if err != nil {
			log.Fatalf("❌ Export failed: %v", err)
		}
		withStore(ctx, *configPath, func(store storage.BlockStore) error {
			f, err := os.Create(*file)
			if err != nil {
				return err
			}
			n, err := snapshot.Export(ctx, f, store, box.Min, box.Max)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			fmt.Printf("✅ Exported %d blocks of %v to %s\n", n, box, *file)
			return nil
		})

	case "import":
		withStore(ctx, *configPath, func(store storage.BlockStore) error {
			f, err := os.Open(*file)
			if err != nil {
				return err
			}
			defer f.Close()

			header, n, err := snapshot.Import(ctx, f, store)
			if err != nil {
				return err
			}
			fmt.Printf("✅ Imported %d blocks of %v\n", n, header.Box())
			return nil
		})

	case "generate":
		box, err := blockpos.ParseBox(*boxFlag)
		if err != nil {
			log.Fatalf("❌ Generate failed: %v", err)
		}
		cfg := loadConfig(*configPath)
		withStore(ctx, *configPath, func(store storage.BlockStore) error {
			n, err := terrain.FromConfig(cfg.Terrain).Fill(ctx, store, box.Min, box.Max)
			if err != nil {
				return err
			}
			fmt.Printf("✅ Generated %d blocks in %v\n", n, box)
			return nil
		})

	default:
		log.Fatalf("❌ Unknown command: %s", *command)
	}
}

func printPoints(next func() bool, current func() *blockpos.MutablePos, limit int) {
	for i := 0; i < limit && next(); i++ {
		fmt.Println(current().Immutable().ShortString())
	}
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}
	return cfg
}

func withStore(ctx context.Context, configPath string, fn func(storage.BlockStore) error) {
	cfg := loadConfig(configPath)

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("❌ Failed to open storage: %v", err)
	}
	defer store.Close()

	if err := fn(store); err != nil {
		log.Fatalf("❌ Command failed: %v", err)
	}
}

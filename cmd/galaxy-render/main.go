// Command galaxy-render is the SPMD entrypoint for a rendering process: every rank in the
// world runs this same binary, connects to its peers over TCP, registers the framework's
// keyed classes and Work types, and either drives the render (rank 0) or waits to be told
// what to do. Grounded on the teacher's worker/distributed/main.go and master/main.go
// entrypoints, adapted from the grpc/gob registration flow to the SPMD transport.Communicator
// model (SPEC_FULL.md §4.10).
package main

import (
	"strconv"
	"strings"

	"github.com/mwindels/galaxy/internal/app"
	"github.com/mwindels/galaxy/internal/config"
	"github.com/mwindels/galaxy/internal/geom"
	"github.com/mwindels/galaxy/internal/keyed"
	"github.com/mwindels/galaxy/internal/partition"
	"github.com/mwindels/galaxy/internal/render"
	"github.com/mwindels/galaxy/internal/scene"
	"github.com/mwindels/galaxy/internal/transport/tcp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// options holds the CLI flags for one process's launch, one instance of this binary per
// rank (there is no fork/exec-based bootstrap here, unlike mpirun: an external launcher,
// e.g. a shell loop or a job scheduler, is expected to start one process per peer entry).
type options struct {
	rank        int
	peersRaw    []string
	dataset     string
	outDir      string
	width       int
	height      int
	fov         float64
	metricsAddr string
}

func main() {
	opts := &options{}

	root := &cobra.Command{
		Use:   "galaxy-render",
		Short: "run one rank of a distributed ray-tracing render",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}

	flags := root.Flags()
	flags.IntVar(&opts.rank, "rank", 0, "this process's rank in the world")
	flags.StringSliceVar(&opts.peersRaw, "peer", nil, "rank=host:port, repeatable; world size is the number of --peer flags")
	flags.StringVar(&opts.dataset, "dataset", "", "path to a Wavefront OBJ file to render")
	flags.StringVar(&opts.outDir, "out", ".", "directory for output images and logs")
	flags.IntVar(&opts.width, "width", 512, "image width in pixels")
	flags.IntVar(&opts.height, "height", 512, "image height in pixels")
	flags.Float64Var(&opts.fov, "fov", 1.0, "camera field of view in radians")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address")

	if err := root.Execute(); err != nil {
		logrus.WithError(err).Fatal("galaxy-render: fatal error")
	}
}

func run(opts *options) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return errors.Wrap(err, "galaxy-render: loading config")
	}

	peers, err := parsePeers(opts.peersRaw)
	if err != nil {
		return err
	}

	comm, err := tcp.Listen(opts.rank, peers)
	if err != nil {
		return errors.Wrap(err, "galaxy-render: starting transport")
	}
	defer comm.Close()

	frameOutDir = opts.outDir

	a := app.New(cfg, comm)
	registerClasses(a.Objects(), comm.Size())
	registerPixelWork(a.Works())
	registerRenderWork(a.Works())
	registerRayListWork(a.Works())
	registerPropagateStateWork(a.Works())
	registerSyncCheckWork(a.Works())

	if opts.metricsAddr != "" {
		if err := a.ServeMetrics(opts.metricsAddr); err != nil {
			return errors.Wrap(err, "galaxy-render: starting metrics server")
		}
	}

	a.Start()
	defer a.Shutdown(opts.outDir)

	logrus.WithFields(logrus.Fields{"rank": comm.Rank(), "size": comm.Size()}).Info("galaxy-render: started")

	if comm.Rank() == 0 {
		if err := driveRender(a, opts); err != nil {
			a.Fatal(err)
			return err
		}
	}

	return a.Wait()
}

// driveRender is rank 0's control-plane loop: load the dataset, commit the scene's keyed
// objects (including the global Partitioning every rank's subbox is carved from and the
// Rendering tuple naming the camera/visualization/owner triple), and broadcast a renderMsg
// that every rank (including this one) answers by originating its share of primary rays. A
// richer CLI would loop here issuing successive frames (SPEC_FULL.md §4.8's
// SetCameraMsg/reset cycle); this entrypoint renders exactly one. Completion is reported
// asynchronously via the distributed quiescence protocol in quiescence.go, not by this
// function returning.
func driveRender(a *app.Application, opts *options) error {
	if opts.dataset == "" {
		return errors.New("galaxy-render: --dataset is required on rank 0")
	}

	mesh, err := scene.MeshFromFile(opts.dataset)
	if err != nil {
		return errors.Wrapf(err, "galaxy-render: loading dataset %s", opts.dataset)
	}
	meshKey := a.Objects().NewKey()
	if err := a.CommitObject(meshKey, mesh); err != nil {
		return errors.Wrap(err, "galaxy-render: committing dataset")
	}

	lighting := scene.NewLighting()
	lighting.Shadows = true
	lighting.AddDirectional(geom.Vector{X: -1, Y: -1, Z: -1})
	lightKey := a.Objects().NewKey()
	if err := a.CommitObject(lightKey, lighting); err != nil {
		return errors.Wrap(err, "galaxy-render: committing lighting")
	}

	cam, err := scene.NewCamera(geom.Vector{X: 0, Y: 0, Z: -5}, geom.Vector{X: 0, Y: 0, Z: 1}, opts.fov, opts.width, opts.height)
	if err != nil {
		return errors.Wrap(err, "galaxy-render: building camera")
	}
	camKey := a.Objects().NewKey()
	if err := a.CommitObject(camKey, &cam); err != nil {
		return errors.Wrap(err, "galaxy-render: committing camera")
	}

	vis := &scene.Visualization{Dataset: meshKey, Lighting: lightKey, GlobalBox: mesh.BoundingBox()}
	visKey := a.Objects().NewKey()
	if err := a.CommitObject(visKey, vis); err != nil {
		return errors.Wrap(err, "galaxy-render: committing visualization")
	}

	part := partition.New(vis.GlobalBox, a.Size())
	partKey := a.Objects().NewKey()
	if err := a.CommitObject(partKey, part); err != nil {
		return errors.Wrap(err, "galaxy-render: committing partitioning")
	}

	rendering := &render.Rendering{Camera: camKey, Visualization: visKey, Partitioning: partKey, OwnerRank: 0}
	renderingKey := a.Objects().NewKey()
	if err := a.CommitObject(renderingKey, rendering); err != nil {
		return errors.Wrap(err, "galaxy-render: committing rendering")
	}

	return a.BroadcastWork(&renderMsg{rendering: renderingKey}, true, true)
}

// registerClasses registers every keyed class this framework ships with, so a commit
// broadcast for any of them can materialize a local replica on first sight (SPEC_FULL.md
// §4.6). Partitioning's factory closes over the world size since Deserialize only ever reads
// its Global box off the wire.
func registerClasses(objects *keyed.Registry, worldSize int) {
	objects.RegisterClass("Camera", func() keyed.Object { return &scene.Camera{} })
	objects.RegisterClass("Dataset", func() keyed.Object { return &scene.Mesh{} })
	objects.RegisterClass("Lighting", func() keyed.Object { return &scene.Lighting{} })
	objects.RegisterClass("Visualization", func() keyed.Object { return &scene.Visualization{} })
	objects.RegisterClass("Partitioning", func() keyed.Object { return partition.NewEmpty(worldSize) })
	objects.RegisterClass("Rendering", func() keyed.Object { return &render.Rendering{} })
}

// parsePeers turns a slice of "rank=host:port" flag values into a tcp.Peers map; the world
// size is simply the number of entries provided.
func parsePeers(raw []string) (tcp.Peers, error) {
	if len(raw) == 0 {
		return nil, errors.New("galaxy-render: at least one --peer is required")
	}

	peers := make(tcp.Peers, len(raw))
	for _, entry := range raw {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			return nil, errors.Errorf("galaxy-render: malformed --peer %q, want rank=host:port", entry)
		}
		rank, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, errors.Wrapf(err, "galaxy-render: parsing rank in --peer %q", entry)
		}
		peers[rank] = parts[1]
	}
	return peers, nil
}

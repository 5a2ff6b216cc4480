package commands

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"noisewatch/internal/escalation"
	"noisewatch/internal/observability"
	"noisewatch/internal/services"
	contextutils "noisewatch/internal/utils"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"
)

const metersPerDegree = 111320.0

var seedReasons = []string{
	"Karaoke past midnight",
	"Construction before 6 AM",
	"Barking dogs",
	"Loud motorcycle exhaust",
	"Party with amplified music",
	"Roosters and livestock",
	"Generator running all night",
	"Street vendors with loudspeakers",
}

// SeedCommand returns the command that fills a development store with fake accounts and reports
func SeedCommand(provide Provider, logger *observability.Logger) *cobra.Command {
	var (
		count   int
		users   int
		seed    int64
		lat     float64
		lng     float64
		spreadM float64
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create fake users and noise reports",
		Long: `Create fake users and noise reports for local development. Each report carries a short
silent WAV clip and goes through the normal submission path. Reports are spread around
--lat/--lng and attributed round-robin to the seeded users, or left anonymous when --users is 0.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if count < 0 || users < 0 {
				return contextutils.WrapError(contextutils.ErrInvalidInput, "--count and --users must not be negative")
			}

			env, err := provide(ctx)
			if err != nil {
				return err
			}

			faker := gofakeit.New(seed)
			out := cmd.OutOrStdout()

			var owners []string
			for i := 0; i < users; i++ {
				u, err := env.Users.Register(ctx, services.RegisterRequest{
					Username: faker.Username(),
					Email:    faker.Email(),
					Password: faker.Password(true, true, true, false, false, 16),
				})
				if err != nil {
					return contextutils.WrapErrorf(err, "failed to create user %d", i+1)
				}
				if err := env.Users.MarkVerified(ctx, u.ID); err != nil {
					return contextutils.WrapErrorf(err, "failed to verify user %s", u.ID)
				}
				owners = append(owners, u.ID)
				fmt.Fprintf(out, "Created user %s <%s>\n", u.Username, u.Email)
			}

			clip := silentWAV()
			for i := 0; i < count; i++ {
				form, err := fakeSubmission(faker, lat, lng, spreadM)
				if err != nil {
					return err
				}

				var owner *string
				if len(owners) > 0 {
					id := owners[i%len(owners)]
					owner = &id
				}

				report, err := env.Reports.Submit(ctx, form, bytes.NewReader(clip), owner)
				if err != nil {
					logger.Error(ctx, "Failed to seed report", err, map[string]interface{}{"index": i})
					return contextutils.WrapErrorf(err, "failed to create report %d", i+1)
				}
				fmt.Fprintf(out, "Created %s report %s\n", report.NoiseLevel, report.ID)
			}

			fmt.Fprintf(out, "Seeded %d users and %d reports\n", users, count)
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 20, "number of reports to create")
	cmd.Flags().IntVar(&users, "users", 0, "number of verified users to create")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed; 0 picks a random one")
	cmd.Flags().Float64Var(&lat, "lat", 14.5995, "latitude reports are spread around")
	cmd.Flags().Float64Var(&lng, "lng", 120.9842, "longitude reports are spread around")
	cmd.Flags().Float64Var(&spreadM, "spread", 300, "maximum distance from the center in meters")
	return cmd
}

// fakeSubmission builds a form the submission validator accepts
func fakeSubmission(faker *gofakeit.Faker, lat, lng, spreadM float64) (services.SubmissionForm, error) {
	dLat := faker.Float64Range(-spreadM, spreadM) / metersPerDegree
	dLng := faker.Float64Range(-spreadM, spreadM) / (metersPerDegree * math.Max(math.Cos(lat*math.Pi/180), 0.01))

	location, err := json.Marshal(map[string]interface{}{
		"lat":     clamp(lat+dLat, -90, 90),
		"lng":     clamp(lng+dLng, -180, 180),
		"address": faker.Street() + ", " + faker.City(),
	})
	if err != nil {
		return services.SubmissionForm{}, contextutils.WrapError(err, "failed to encode location")
	}

	levels := make([]string, len(escalation.AllLevels))
	for i, l := range escalation.AllLevels {
		levels[i] = string(l)
	}

	return services.SubmissionForm{
		HasMedia:   true,
		Reason:     faker.RandomString(seedReasons),
		Comment:    faker.Sentence(12),
		Location:   string(location),
		NoiseLevel: faker.RandomString(levels),
	}, nil
}

// silentWAV returns a quarter second of 8 kHz 8-bit mono silence
func silentWAV() []byte {
	const (
		sampleRate = 8000
		samples    = sampleRate / 4
	)
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+samples))
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))         // fmt chunk size
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))          // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))          // channels
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate)) // sample rate
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate)) // byte rate
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))          // block align
	_ = binary.Write(&buf, binary.LittleEndian, uint16(8))          // bits per sample
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(samples))
	buf.Write(bytes.Repeat([]byte{0x80}, samples))
	return buf.Bytes()
}

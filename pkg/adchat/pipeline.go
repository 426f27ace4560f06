package adchat

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/adforge/adforge/pkg/catalog"
	"github.com/adforge/adforge/pkg/genx"
)

// descriptionsPerRound is the number of image descriptions (and therefore
// image jobs) requested for every generation round.
const descriptionsPerRound = 3

// Fallback caption/tags substituted when a caption job fails; the image
// is kept rather than dropped.
const fallbackCaption = "Check out our latest product!"

var fallbackTags = []string{"#ad", "#new"}

type imageDescriptionList struct {
	Descriptions []string `json:"descriptions"`
}

var imageDescriptionsSchema = genx.MustSchemaFor[imageDescriptionList](
	"image_descriptions",
	"Exactly three distinct natural-language image descriptions for an advertisement.",
)

type captionResult struct {
	Caption string   `json:"caption"`
	Tags    []string `json:"tags"`
}

var captionSchema = genx.MustSchemaFor[captionResult](
	"caption_result",
	"An advertisement caption and a list of hashtags for one image.",
)

// imageOutcome is the settled result of one image job: either image
// bytes or a captured error, tagged with the originating description
// index.
type imageOutcome struct {
	index int
	data  []byte
	err   error
}

// captionOutcome is the settled result of one caption job, tagged with
// the position of its image in completion order.
type captionOutcome struct {
	pos int
	res captionResult
	err error
}

// runRound executes one fan-out/fan-in generation round for the selected
// template. Only a template lookup or description failure aborts the
// round; individual image and caption failures are contained per job.
func (o *Orchestrator) runRound(ctx context.Context, templateID string, yield func(Event) bool) {
	sctx, scancel := context.WithTimeout(ctx, o.cfg.StoreTimeout)
	tpl, err := o.catalog.Get(sctx, templateID)
	scancel()
	if err != nil {
		o.logger.Error("adchat: template lookup failed", "template_id", templateID, "err", err)
		yield(o.errorEvent(fmt.Sprintf("Template %q is not available.", templateID)))
		return
	}

	descs, err := o.describeImages(ctx, tpl)
	if err != nil {
		o.logger.Error("adchat: image descriptions failed", "template_id", templateID, "err", err)
		yield(o.errorEvent("Could not plan the advertisement images, please try again."))
		return
	}

	if !yield(o.textEvent(fmt.Sprintf("Generating %d ad images for %q...", len(descs), tpl.Title))) {
		return
	}

	roundID := uuid.NewString()
	settled := o.generateImages(ctx, tpl, descs)

	// Partition: successes keep their settlement order; failures are
	// logged and dropped.
	var successes []imageOutcome
	for _, out := range settled {
		if out.err != nil {
			o.logger.Warn("adchat: image job failed",
				"round", roundID, "description_index", out.index, "err", out.err)
			continue
		}
		successes = append(successes, out)
	}

	captions := o.captionImages(ctx, successes)

	finals := make([]FinalTemplate, 0, len(successes))
	stats := RoundStats{TotalRequested: descriptionsPerRound, ImagesSuccessful: len(successes)}
	for pos, img := range successes {
		ft := FinalTemplate{
			Position:    pos + 1,
			Title:       tpl.Title,
			Description: tpl.Description,
			ImageURL:    tpl.ImageURL,
			Image:       img.data,
			ImagePath:   o.archiveImage(ctx, roundID, pos+1, img.data),
		}
		c := captions[pos]
		if c.err != nil {
			o.logger.Warn("adchat: caption job failed, using fallback",
				"round", roundID, "position", pos+1, "err", c.err)
			ft.Caption = fallbackCaption
			ft.Tags = slices.Clone(fallbackTags)
			ft.Warning = "caption generation failed; default caption applied"
			stats.CaptionsDefaulted++
		} else {
			ft.Caption = c.res.Caption
			ft.Tags = c.res.Tags
			stats.CaptionsSuccessful++
		}
		finals = append(finals, ft)
	}

	progress := fmt.Sprintf(
		"Round complete: %d images requested, %d generated, %d captioned, %d defaulted.",
		stats.TotalRequested, stats.ImagesSuccessful, stats.CaptionsSuccessful, stats.CaptionsDefaulted,
	)
	if !yield(o.textEvent(progress)) {
		return
	}
	yield(FinalTemplatesEvent{
		Envelope:  envelope(CategoryFinalTemplates, o.now()),
		Templates: finals,
		Stats:     stats,
	})
}

// describeImages asks the generator for the round's image descriptions as
// one structured-output call conditioned on the template and the
// transcript so far.
func (o *Orchestrator) describeImages(ctx context.Context, tpl catalog.Template) ([]string, error) {
	brief := fmt.Sprintf("Selected template: %s. %s", tpl.Title, tpl.Description)
	if tpl.Instructions != "" {
		brief += "\nTemplate instructions: " + tpl.Instructions
	}
	msgs := append(slices.Clone(o.transcript), genx.UserText(brief))

	gctx, cancel := context.WithTimeout(ctx, o.cfg.GenTimeout)
	defer cancel()
	raw, err := o.gen.GenerateStructured(gctx, &genx.Request{
		System:   describeImagesDirective,
		Messages: msgs,
		Model:    o.cfg.ChatModel,
	}, imageDescriptionsSchema)
	if err != nil {
		return nil, err
	}

	var list imageDescriptionList
	if err := genx.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("decode descriptions: %w", err)
	}
	descs := list.Descriptions
	if len(descs) == 0 {
		return nil, fmt.Errorf("no descriptions in structured output")
	}
	if len(descs) > descriptionsPerRound {
		descs = descs[:descriptionsPerRound]
	}
	return descs, nil
}

// generateImages launches one image job per description and waits for
// all of them to settle. The returned slice is in settlement order, which
// is what final templates are numbered by; it is not necessarily the
// description order.
func (o *Orchestrator) generateImages(ctx context.Context, tpl catalog.Template, descs []string) []imageOutcome {
	ch := make(chan imageOutcome, len(descs))
	for i, desc := range descs {
		go func(i int, desc string) {
			gctx, cancel := context.WithTimeout(ctx, o.cfg.GenTimeout)
			defer cancel()
			prompt := desc
			if tpl.Instructions != "" {
				prompt += "\n" + tpl.Instructions
			}
			data, err := o.gen.GenerateImage(gctx, &genx.Request{
				Messages: []genx.Message{genx.UserText(prompt)},
				Model:    o.cfg.ImageModel,
			})
			ch <- imageOutcome{index: i, data: data, err: err}
		}(i, desc)
	}

	// Full join: every job settles before the round proceeds. A failed
	// job never cancels its siblings.
	settled := make([]imageOutcome, 0, len(descs))
	for range descs {
		settled = append(settled, <-ch)
	}
	return settled
}

// captionImages launches one caption job per successful image and waits
// for all of them to settle. Outcomes are indexed by the image's position
// in settlement order.
func (o *Orchestrator) captionImages(ctx context.Context, images []imageOutcome) []captionOutcome {
	ch := make(chan captionOutcome, len(images))
	for pos, img := range images {
		go func(pos int, data []byte) {
			gctx, cancel := context.WithTimeout(ctx, o.cfg.GenTimeout)
			defer cancel()
			msgs := append(slices.Clone(o.transcript),
				genx.UserImage("Generate the caption and hashtags for this advertisement image.", "image/png", data))
			raw, err := o.gen.GenerateStructured(gctx, &genx.Request{
				System:   captionDirective,
				Messages: msgs,
				Model:    o.cfg.ChatModel,
			}, captionSchema)
			if err != nil {
				ch <- captionOutcome{pos: pos, err: err}
				return
			}
			var res captionResult
			if err := genx.Unmarshal([]byte(raw), &res); err != nil {
				ch <- captionOutcome{pos: pos, err: fmt.Errorf("decode caption: %w", err)}
				return
			}
			ch <- captionOutcome{pos: pos, res: res}
		}(pos, img.data)
	}

	out := make([]captionOutcome, len(images))
	for range images {
		c := <-ch
		out[c.pos] = c
	}
	return out
}

// archiveImage persists one generated image, best-effort. Returns the
// archive path, or "" when archiving is disabled or failed.
func (o *Orchestrator) archiveImage(ctx context.Context, roundID string, position int, data []byte) string {
	if o.archive == nil {
		return ""
	}
	path := fmt.Sprintf("rounds/%s/image-%d.png", roundID, position)
	sctx, cancel := context.WithTimeout(ctx, o.cfg.StoreTimeout)
	defer cancel()
	if err := o.archive.Save(sctx, path, data); err != nil {
		o.logger.Warn("adchat: image archive failed", "round", roundID, "position", position, "err", err)
		return ""
	}
	return path
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/brainbox/internal/local/functions"
	"github.com/dmitrijs2005/brainbox/internal/local/query"
	"github.com/dmitrijs2005/brainbox/internal/models"
	"github.com/dustin/go-humanize"
)

const listLimit = 50

// AddNote prompts for a title, body and tags and saves a note. With no tags
// given, tags are suggested from the text. The note gets an embedding.
func (a *App) AddNote(ctx context.Context) error {
	uid, err := a.userID(ctx)
	if err != nil {
		return err
	}

	title, err := getSimpleText(a.reader, "Title", a.out)
	if err != nil {
		return err
	}
	content, err := GetMultiline(a.reader, "Note", a.out)
	if err != nil {
		return err
	}
	tags, err := GetTags(a.reader, "Tags (comma separated, empty to suggest)", a.out)
	if err != nil {
		return err
	}

	fns := a.client.Functions()
	text := map[string]any{"title": title, "content": content}
	if len(tags) == 0 {
		var suggested struct {
			Tags []string `json:"tags"`
		}
		if err := fns.Invoke(ctx, functions.GenerateTags, text).Scan(&suggested); err == nil {
			tags = suggested.Tags
		}
	}

	row := query.Row{
		"type":    models.ItemNote,
		"title":   title,
		"content": content,
		"tags":    tags,
		"user_id": uid,
	}
	if emb := fns.Invoke(ctx, functions.GenerateEmbedding, text); emb.Err == nil {
		row["embedding"] = emb.Row()["embedding"]
	}
	if sum := fns.Invoke(ctx, functions.Summarize, text); sum.Err == nil {
		row["summary"] = sum.Row()["summary"]
	}

	return a.insertItem(ctx, row)
}

// AddLink prompts for a URL and saves it with a preview title.
func (a *App) AddLink(ctx context.Context) error {
	uid, err := a.userID(ctx)
	if err != nil {
		return err
	}

	url, err := getSimpleText(a.reader, "URL", a.out)
	if err != nil {
		return err
	}
	var preview struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	}
	if err := a.client.Functions().Invoke(ctx, functions.FetchLinkPreview, map[string]any{"url": url}).Scan(&preview); err != nil {
		return err
	}
	tags, err := GetTags(a.reader, "Tags (comma separated)", a.out)
	if err != nil {
		return err
	}

	return a.insertItem(ctx, query.Row{
		"type":    models.ItemLink,
		"title":   preview.Title,
		"content": preview.URL,
		"tags":    tags,
		"user_id": uid,
	})
}

func (a *App) insertItem(ctx context.Context, row query.Row) error {
	var item models.Item
	if err := a.client.Table("items").Insert(row).Single().Execute(ctx).Scan(&item); err != nil {
		return err
	}
	printlnFn(a.out, "Saved", item.Type.String(), shortID(item.ID), formatTags(item.Tags))
	return nil
}

// List prints the newest items, optionally only those carrying a tag.
func (a *App) List(ctx context.Context, args []string) error {
	uid, err := a.userID(ctx)
	if err != nil {
		return err
	}

	q := a.client.Table("items").Select("id", "type", "title", "tags", "created_at").Eq("user_id", uid)
	if len(args) > 0 {
		q = q.Contains("tags", []string{strings.ToLower(args[0])})
	}

	var items []models.Item
	if err := q.Order("created_at", false).Limit(listLimit).Execute(ctx).Scan(&items); err != nil {
		return err
	}
	if len(items) == 0 {
		printlnFn(a.out, "No items")
		return nil
	}
	for _, it := range items {
		printlnFn(a.out, fmt.Sprintf("%s  %-8s %-40s %s  %s",
			shortID(it.ID), it.Type, truncate(models.Deref(it.Title), 40), formatTags(it.Tags), humanize.Time(it.CreatedAt)))
	}
	return nil
}

// Show prints one item in full.
func (a *App) Show(ctx context.Context, args []string) error {
	item, err := a.findItem(ctx, args)
	if err != nil {
		return err
	}

	printlnFn(a.out, "ID:      ", item.ID)
	printlnFn(a.out, "Type:    ", item.Type)
	printlnFn(a.out, "Title:   ", models.Deref(item.Title))
	printlnFn(a.out, "Tags:    ", formatTags(item.Tags))
	if s := models.Deref(item.Summary); s != "" {
		printlnFn(a.out, "Summary: ", s)
	}
	printlnFn(a.out, "Created: ", item.CreatedAt.Local().Format("2006-01-02 15:04"), "("+humanize.Time(item.CreatedAt)+")")
	printlnFn(a.out, "Updated: ", item.UpdatedAt.Local().Format("2006-01-02 15:04"))
	if c := models.Deref(item.Content); c != "" {
		printlnFn(a.out)
		printlnFn(a.out, c)
	}
	return nil
}

// Tag adds tags to an item.
func (a *App) Tag(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: tag <id> <tag> [tag...]")
	}
	item, err := a.findItem(ctx, args[:1])
	if err != nil {
		return err
	}

	tags := splitTags(strings.Join(append(append([]string{}, item.Tags...), args[1:]...), ","))
	var updated models.Item
	err = a.client.Table("items").Update(query.Row{"tags": tags}).Eq("id", item.ID).Single().Execute(ctx).Scan(&updated)
	if err != nil {
		return err
	}
	printlnFn(a.out, "Tagged", shortID(updated.ID), formatTags(updated.Tags))
	return nil
}

// Delete removes one item.
func (a *App) Delete(ctx context.Context, args []string) error {
	item, err := a.findItem(ctx, args)
	if err != nil {
		return err
	}
	res := a.client.Table("items").Delete().Eq("id", item.ID).Execute(ctx)
	if res.Err != nil {
		return res.Err
	}
	printlnFn(a.out, "Deleted", shortID(item.ID))
	return nil
}

// Category lists the user's categories, or creates one when a name is given.
func (a *App) Category(ctx context.Context, args []string) error {
	uid, err := a.userID(ctx)
	if err != nil {
		return err
	}

	if len(args) > 0 {
		var cat models.Category
		name := strings.Join(args, " ")
		if err := a.client.Table("categories").Insert(query.Row{"name": name, "user_id": uid}).Single().Execute(ctx).Scan(&cat); err != nil {
			return err
		}
		printlnFn(a.out, "Created category", cat.Name, shortID(cat.ID))
		return nil
	}

	var cats []models.Category
	if err := a.client.Table("categories").Eq("user_id", uid).Order("name", true).Execute(ctx).Scan(&cats); err != nil {
		return err
	}
	if len(cats) == 0 {
		printlnFn(a.out, "No categories")
	}
	for _, c := range cats {
		printlnFn(a.out, shortID(c.ID), c.Name)
	}
	return nil
}

// findItem resolves args[0], a full id or an id prefix, to one of the user's
// items.
func (a *App) findItem(ctx context.Context, args []string) (*models.Item, error) {
	if len(args) == 0 {
		return nil, errors.New("an item id is required")
	}
	uid, err := a.userID(ctx)
	if err != nil {
		return nil, err
	}

	res := a.client.Table("items").Eq("user_id", uid).Like("id", args[0]+"%").Limit(2).Execute(ctx)
	if res.Err != nil {
		return nil, res.Err
	}
	var items []models.Item
	if err := res.Scan(&items); err != nil {
		return nil, err
	}
	switch len(items) {
	case 0:
		return nil, fmt.Errorf("no item %q", args[0])
	case 1:
		return &items[0], nil
	default:
		return nil, fmt.Errorf("id prefix %q is ambiguous", args[0])
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func formatTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	return "[" + strings.Join(tags, ", ") + "]"
}

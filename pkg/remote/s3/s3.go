// Package s3 shares projects into S3 buckets. Buckets are hubs, top level
// prefixes are projects and second level prefixes are folders.
package s3

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/plantshare/pkg/config"
	"github.com/walteh/plantshare/pkg/remote"
	"github.com/walteh/plantshare/pkg/session"
)

// Name is the backend name used in configuration
const Name = "s3"

func init() {
	remote.Register(Name, New)
}

// API is the part of the S3 client the backend uses
type API interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// rejectedCodes are error codes that mean the credentials are not usable
var rejectedCodes = map[string]bool{
	"InvalidAccessKeyId":    true,
	"SignatureDoesNotMatch": true,
	"ExpiredToken":          true,
	"InvalidToken":          true,
}

type storedKeys struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

// 🪣 Client is the S3 collaboration backend
type Client struct {
	cfg      config.S3Config
	sessions session.Store
	prompter remote.Prompter
	// newAPI builds an API client, with static keys when keys is not nil
	newAPI func(ctx context.Context, keys *storedKeys) (API, error)
}

// New creates the S3 backend
func New(ctx context.Context, opts remote.Options) (remote.Client, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	prompter := opts.Prompter
	if prompter == nil {
		prompter = remote.TerminalPrompter{}
	}
	c := &Client{
		cfg:      opts.Config.S3,
		sessions: opts.Sessions,
		prompter: prompter,
	}
	c.newAPI = c.sdkAPI
	return c, nil
}

func (c *Client) sdkAPI(ctx context.Context, keys *storedKeys) (API, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if c.cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(c.cfg.Region))
	}
	if keys != nil {
		k := *keys
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(aws.CredentialsProviderFunc(
			func(context.Context) (aws.Credentials, error) {
				return aws.Credentials{AccessKeyID: k.AccessKeyID, SecretAccessKey: k.SecretAccessKey, Source: "plantshare"}, nil
			})))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Errorf("loading aws config: %w", err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = "us-east-1"
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if c.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.cfg.Endpoint)
		}
		o.UsePathStyle = c.cfg.PathStyle
	}), nil
}

func (c *Client) Name() string {
	return Name
}

func (c *Client) keys(ctx context.Context) (*storedKeys, error) {
	tok, err := c.sessions.Load(ctx, Name)
	if err != nil || tok == nil {
		return nil, err
	}
	var k storedKeys
	if err := json.Unmarshal([]byte(tok.Value), &k); err != nil {
		return nil, errors.Errorf("parsing stored keys: %w", err)
	}
	return &k, nil
}

// 🔍 Lookup returns a session when stored keys or the default credential
// chain can list buckets, or nil when the credentials are rejected
func (c *Client) Lookup(ctx context.Context) (remote.Session, error) {
	keys, err := c.keys(ctx)
	if err != nil {
		return nil, err
	}
	api, err := c.newAPI(ctx, keys)
	if err != nil {
		return nil, err
	}

	if _, err := api.ListBuckets(ctx, &s3.ListBucketsInput{}); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && rejectedCodes[apiErr.ErrorCode()] {
			zerolog.Ctx(ctx).Warn().Str("code", apiErr.ErrorCode()).Msg("s3 credentials were rejected")
			return nil, nil
		}
		if isMissingCredentials(err) {
			return nil, nil
		}
		return nil, errors.Errorf("checking s3 credentials: %w", err)
	}

	user := "default credentials"
	if keys != nil {
		user = keys.AccessKeyID
	}
	return &Session{api: api, user: user}, nil
}

func isMissingCredentials(err error) bool {
	return strings.Contains(err.Error(), "failed to retrieve credentials") ||
		strings.Contains(err.Error(), "no EC2 IMDS role found")
}

// 🔐 SignIn asks for an access key pair and stores it
func (c *Client) SignIn(ctx context.Context) error {
	id, err := c.prompter.Secret(ctx, "AWS access key id")
	if err != nil {
		return errors.Errorf("prompting for access key id: %w", err)
	}
	secret, err := c.prompter.Secret(ctx, "AWS secret access key")
	if err != nil {
		return errors.Errorf("prompting for secret access key: %w", err)
	}
	if id == "" || secret == "" {
		return errors.New("access key id and secret are required")
	}

	data, err := json.Marshal(storedKeys{AccessKeyID: id, SecretAccessKey: secret})
	if err != nil {
		return errors.Errorf("marshaling keys: %w", err)
	}
	return c.sessions.Save(ctx, &session.Token{
		Backend:   Name,
		User:      id,
		Value:     string(data),
		CreatedAt: time.Now().UTC(),
	})
}

// DocumentServer returns the object uploader for a session
func (c *Client) DocumentServer(ctx context.Context, s remote.Session) (remote.DocumentServer, error) {
	ss, ok := s.(*Session)
	if !ok {
		return nil, errors.Errorf("session of type %T does not belong to the s3 backend", s)
	}
	return newDocumentServer(ss), nil
}

// 🔐 Session is a working set of S3 credentials
type Session struct {
	api  API
	user string
}

func (s *Session) User() string {
	return s.user
}

// Hubs lists the buckets
func (s *Session) Hubs(ctx context.Context) ([]remote.Hub, error) {
	out, err := s.api.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, errors.Errorf("listing buckets: %w", err)
	}
	hubs := make([]remote.Hub, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		name := aws.ToString(b.Name)
		hubs = append(hubs, remote.Hub{ID: name, Name: name})
	}
	return hubs, nil
}

// Projects lists the top level prefixes of a bucket
func (s *Session) Projects(ctx context.Context, hub remote.Hub) ([]remote.Project, error) {
	prefixes, err := s.prefixes(ctx, hub.ID, "")
	if err != nil {
		return nil, errors.Errorf("listing projects of %s: %w", hub.Name, err)
	}
	out := make([]remote.Project, 0, len(prefixes))
	for _, p := range prefixes {
		out = append(out, remote.Project{
			ID:         p,
			Name:       strings.TrimSuffix(p, "/"),
			RootFolder: "s3://" + hub.ID + "/" + p,
		})
	}
	return out, nil
}

// Folders lists the prefixes directly below a project
func (s *Session) Folders(ctx context.Context, hub remote.Hub, project remote.Project) ([]remote.Folder, error) {
	prefixes, err := s.prefixes(ctx, hub.ID, project.ID)
	if err != nil {
		return nil, errors.Errorf("listing folders of %s: %w", project.Name, err)
	}
	out := make([]remote.Folder, 0, len(prefixes))
	for _, p := range prefixes {
		out = append(out, remote.Folder{
			ID:   p,
			Name: strings.TrimSuffix(strings.TrimPrefix(p, project.ID), "/"),
		})
	}
	return out, nil
}

func (s *Session) prefixes(ctx context.Context, bucket, prefix string) ([]string, error) {
	pager := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	var out []string
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, cp := range page.CommonPrefixes {
			out = append(out, aws.ToString(cp.Prefix))
		}
	}
	return out, nil
}

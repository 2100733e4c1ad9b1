package fakes

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

const fakeAccount = "123456789012"

// FakeSecretsManagerClient is an in-memory Secrets Manager
type FakeSecretsManagerClient struct {
	mu sync.Mutex

	// Secrets maps secret names to their data
	Secrets map[string]*SecretData
	// Errors maps secret names to errors to return from any operation
	Errors map[string]error

	// CreateSecretFunc allows custom behavior for CreateSecret
	CreateSecretFunc func(ctx context.Context, params *secretsmanager.CreateSecretInput) (*secretsmanager.CreateSecretOutput, error)
	// PutSecretValueFunc allows custom behavior for PutSecretValue
	PutSecretValueFunc func(ctx context.Context, params *secretsmanager.PutSecretValueInput) (*secretsmanager.PutSecretValueOutput, error)

	// Deleted records names passed to DeleteSecret
	Deleted []string
}

// SecretData holds the data for a fake secret
type SecretData struct {
	ARN          string
	SecretString *string
	KmsKeyId     *string
	Description  *string
	Tags         map[string]string
	Versions     int
}

// NewFakeSecretsManagerClient creates a new fake Secrets Manager client
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Secrets: make(map[string]*SecretData),
		Errors:  make(map[string]error),
	}
}

// AddError configures the fake to fail every call for a secret name
func (f *FakeSecretsManagerClient) AddError(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = err
}

// Names returns the stored secret names, sorted
func (f *FakeSecretsManagerClient) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.Secrets))
	for name := range f.Secrets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateSecret mocks the CreateSecret operation
func (f *FakeSecretsManagerClient) CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	if f.CreateSecretFunc != nil {
		return f.CreateSecretFunc(ctx, params)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.Name)
	if err, exists := f.Errors[name]; exists {
		return nil, err
	}
	if _, exists := f.Secrets[name]; exists {
		return nil, &types.ResourceExistsException{
			Message: aws.String(fmt.Sprintf("The operation failed because the secret %s already exists.", name)),
		}
	}

	tags := make(map[string]string, len(params.Tags))
	for _, tag := range params.Tags {
		tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}

	data := &SecretData{
		ARN:         secretARN(name),
		KmsKeyId:    params.KmsKeyId,
		Description: params.Description,
		Tags:        tags,
	}
	if params.SecretString != nil {
		data.SecretString = params.SecretString
		data.Versions++
	}
	f.Secrets[name] = data

	return &secretsmanager.CreateSecretOutput{
		ARN:  aws.String(data.ARN),
		Name: params.Name,
	}, nil
}

// PutSecretValue mocks the PutSecretValue operation
func (f *FakeSecretsManagerClient) PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	if f.PutSecretValueFunc != nil {
		return f.PutSecretValueFunc(ctx, params)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	name, data, err := f.lookup(aws.ToString(params.SecretId))
	if err != nil {
		return nil, err
	}

	data.SecretString = params.SecretString
	data.Versions++

	return &secretsmanager.PutSecretValueOutput{
		ARN:           aws.String(data.ARN),
		Name:          aws.String(name),
		VersionId:     aws.String(fmt.Sprintf("v%d", data.Versions)),
		VersionStages: []string{"AWSCURRENT"},
	}, nil
}

// GetSecretValue mocks the GetSecretValue operation
func (f *FakeSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name, data, err := f.lookup(aws.ToString(params.SecretId))
	if err != nil {
		return nil, err
	}

	return &secretsmanager.GetSecretValueOutput{
		ARN:           aws.String(data.ARN),
		Name:          aws.String(name),
		SecretString:  data.SecretString,
		VersionId:     aws.String(fmt.Sprintf("v%d", data.Versions)),
		VersionStages: []string{"AWSCURRENT"},
	}, nil
}

// DeleteSecret mocks the DeleteSecret operation
func (f *FakeSecretsManagerClient) DeleteSecret(ctx context.Context, params *secretsmanager.DeleteSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name, data, err := f.lookup(aws.ToString(params.SecretId))
	if err != nil {
		return nil, err
	}

	delete(f.Secrets, name)
	f.Deleted = append(f.Deleted, name)

	return &secretsmanager.DeleteSecretOutput{
		ARN:  aws.String(data.ARN),
		Name: aws.String(name),
	}, nil
}

// lookup resolves a SecretId given as a name or an ARN
func (f *FakeSecretsManagerClient) lookup(id string) (string, *SecretData, error) {
	if err, exists := f.Errors[id]; exists {
		return "", nil, err
	}
	if data, exists := f.Secrets[id]; exists {
		return id, data, nil
	}
	for name, data := range f.Secrets {
		if data.ARN == id {
			if err, exists := f.Errors[name]; exists {
				return "", nil, err
			}
			return name, data, nil
		}
	}
	return "", nil, &types.ResourceNotFoundException{
		Message: aws.String(fmt.Sprintf("Secrets Manager can't find the specified secret: %s", id)),
	}
}

func secretARN(name string) string {
	return fmt.Sprintf("arn:aws:secretsmanager:us-east-1:%s:secret:%s-AbCdEf", fakeAccount, name)
}

// FakeSSMClient is an in-memory SSM Parameter Store
type FakeSSMClient struct {
	mu sync.Mutex

	// Parameters maps parameter names to their data
	Parameters map[string]*ParameterData
	// Errors maps parameter names to errors to return from any operation
	Errors map[string]error

	// PutParameterFunc allows custom behavior for PutParameter
	PutParameterFunc func(ctx context.Context, params *ssm.PutParameterInput) (*ssm.PutParameterOutput, error)

	// Deleted records names passed to DeleteParameter
	Deleted []string
}

// ParameterData holds the data for a fake parameter
type ParameterData struct {
	Value   string
	Type    ssmtypes.ParameterType
	KeyId   *string
	Tags    map[string]string
	Version int64
}

// NewFakeSSMClient creates a new fake SSM client
func NewFakeSSMClient() *FakeSSMClient {
	return &FakeSSMClient{
		Parameters: make(map[string]*ParameterData),
		Errors:     make(map[string]error),
	}
}

// AddError configures the fake to fail every call for a parameter name
func (f *FakeSSMClient) AddError(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = err
}

// Names returns the stored parameter names, sorted
func (f *FakeSSMClient) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.Parameters))
	for name := range f.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PutParameter mocks the PutParameter operation
func (f *FakeSSMClient) PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	if f.PutParameterFunc != nil {
		return f.PutParameterFunc(ctx, params)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.Name)
	if err, exists := f.Errors[name]; exists {
		return nil, err
	}

	existing, exists := f.Parameters[name]
	if exists && !aws.ToBool(params.Overwrite) {
		return nil, &ssmtypes.ParameterAlreadyExists{
			Message: aws.String("The parameter already exists. To overwrite this value, set the overwrite option in the request to true."),
		}
	}

	tags := make(map[string]string, len(params.Tags))
	for _, tag := range params.Tags {
		tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}

	version := int64(1)
	if exists {
		version = existing.Version + 1
	}
	f.Parameters[name] = &ParameterData{
		Value:   aws.ToString(params.Value),
		Type:    params.Type,
		KeyId:   params.KeyId,
		Tags:    tags,
		Version: version,
	}

	return &ssm.PutParameterOutput{Version: version, Tier: ssmtypes.ParameterTierStandard}, nil
}

// GetParameter mocks the GetParameter operation
func (f *FakeSSMClient) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.Name)
	if err, exists := f.Errors[name]; exists {
		return nil, err
	}
	data, exists := f.Parameters[name]
	if !exists {
		return nil, &ssmtypes.ParameterNotFound{Message: aws.String(name)}
	}

	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{
			Name:    aws.String(name),
			Value:   aws.String(data.Value),
			Type:    data.Type,
			Version: data.Version,
			ARN:     aws.String(fmt.Sprintf("arn:aws:ssm:us-east-1:%s:parameter%s", fakeAccount, name)),
		},
	}, nil
}

// DeleteParameter mocks the DeleteParameter operation
func (f *FakeSSMClient) DeleteParameter(ctx context.Context, params *ssm.DeleteParameterInput, optFns ...func(*ssm.Options)) (*ssm.DeleteParameterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.Name)
	if err, exists := f.Errors[name]; exists {
		return nil, err
	}
	if _, exists := f.Parameters[name]; !exists {
		return nil, &ssmtypes.ParameterNotFound{Message: aws.String(name)}
	}

	delete(f.Parameters, name)
	f.Deleted = append(f.Deleted, name)
	return &ssm.DeleteParameterOutput{}, nil
}

// FakeSTSClient returns a fixed caller identity
type FakeSTSClient struct {
	Account string
	Arn     string
	UserId  string
	Err     error
}

// NewFakeSTSClient creates a fake STS client for the test account
func NewFakeSTSClient() *FakeSTSClient {
	return &FakeSTSClient{
		Account: fakeAccount,
		Arn:     fmt.Sprintf("arn:aws:iam::%s:user/ci", fakeAccount),
		UserId:  "AIDAEXAMPLE",
	}
}

// GetCallerIdentity mocks the GetCallerIdentity operation
func (f *FakeSTSClient) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return &sts.GetCallerIdentityOutput{
		Account: aws.String(f.Account),
		Arn:     aws.String(f.Arn),
		UserId:  aws.String(f.UserId),
	}, nil
}
